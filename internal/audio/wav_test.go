package audio

import (
	"errors"
	"math"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	original := sineSample([]float64{440}, 1.0, 16000, 0.5)

	encoded, err := EncodeWAV(original)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decoded.SampleRate != original.SampleRate {
		t.Errorf("sample rate: got %d, want %d", decoded.SampleRate, original.SampleRate)
	}
	if len(decoded.Data) != len(original.Data) {
		t.Fatalf("length: got %d, want %d", len(decoded.Data), len(original.Data))
	}
	// 16-bit quantization costs at most ~1/32767 per sample.
	for i := range original.Data {
		if math.Abs(float64(decoded.Data[i]-original.Data[i])) > 0.001 {
			t.Fatalf("sample %d: got %v, want %v", i, decoded.Data[i], original.Data[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a wav file")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("short garbage: got %v, want ErrUnsupportedFormat", err)
	}

	junk := make([]byte, 100)
	copy(junk, "JUNKxxxxJUNK")
	if _, err := DecodeWAV(junk); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("non-RIFF data: got %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeWAVRejectsStereo(t *testing.T) {
	s := sineSample([]float64{440}, 0.5, 16000, 0.5)
	encoded, err := EncodeWAV(s)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	encoded[22] = 2 // NumChannels field

	if _, err := DecodeWAV(encoded); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("stereo header: got %v, want ErrUnsupportedFormat", err)
	}
}

func TestEncodeWAVClipsOutOfRange(t *testing.T) {
	s := &Sample{Data: []float32{2.0, -2.0, 0.5}, SampleRate: 16000, Channels: 1}
	encoded, err := EncodeWAV(s)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	decoded, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if decoded.Data[0] < 0.99 || decoded.Data[1] > -0.99 {
		t.Errorf("out-of-range samples not clipped: %v", decoded.Data[:2])
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(&Sample{SampleRate: 16000, Channels: 1}); !errors.Is(err, ErrEmptySample) {
		t.Errorf("empty sample: got %v, want ErrEmptySample", err)
	}
}
