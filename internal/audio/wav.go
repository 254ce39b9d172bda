package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the 44-byte canonical PCM WAV header.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16 // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// DecodeWAV decodes mono PCM-16 WAV data into a Sample. Only the canonical
// 44-byte-header layout is supported; the capture layer is expected to
// normalize anything fancier before it reaches the engine.
func DecodeWAV(data []byte) (*Sample, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("%w: WAV data too short (%d bytes)", ErrUnsupportedFormat, len(data))
	}

	var hdr wavHeader
	if err := binary.Read(bytes.NewReader(data[:44]), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("audio: failed to read WAV header: %w", err)
	}

	if string(hdr.ChunkID[:]) != "RIFF" || string(hdr.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}
	if hdr.AudioFormat != 1 {
		return nil, fmt.Errorf("%w: audio format %d (expected PCM)", ErrUnsupportedFormat, hdr.AudioFormat)
	}
	if hdr.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d bits per sample (expected 16)", ErrUnsupportedFormat, hdr.BitsPerSample)
	}
	if hdr.NumChannels != 1 {
		return nil, fmt.Errorf("%w: %d channels (expected mono)", ErrUnsupportedFormat, hdr.NumChannels)
	}

	payload := data[44:]
	if uint32(len(payload)) > hdr.Subchunk2Size {
		payload = payload[:hdr.Subchunk2Size]
	}

	pcm, err := pcm16BytesToFloat32(payload)
	if err != nil {
		return nil, err
	}
	return &Sample{Data: pcm, SampleRate: int(hdr.SampleRate), Channels: 1}, nil
}

// EncodeWAV encodes a mono Sample to PCM-16 WAV bytes. Amplitudes outside
// [-1, 1] are clipped.
func EncodeWAV(s *Sample) ([]byte, error) {
	if len(s.Data) == 0 {
		return nil, ErrEmptySample
	}
	if s.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate must be positive, got %d", s.SampleRate)
	}

	dataSize := uint32(len(s.Data) * 2)
	hdr := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(s.SampleRate),
		ByteRate:      uint32(s.SampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(s.Data)*2))
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("audio: failed to write WAV header: %w", err)
	}

	pcm := make([]int16, len(s.Data))
	for i, v := range s.Data {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		pcm[i] = int16(v * 32767)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("audio: failed to write audio data: %w", err)
	}
	return buf.Bytes(), nil
}
