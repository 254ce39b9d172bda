package audio

import (
	"math"
)

// activityWindowSec is the analysis window for energy measurement (20ms).
const activityWindowSec = 0.02

// ActivityReport summarizes speech energy found in a sample. It grounds the
// insufficient-signal check and feeds the enrollment quality score.
type ActivityReport struct {
	// VoicedSeconds is the length of the longest continuous run of windows
	// whose RMS energy exceeded the silence threshold.
	VoicedSeconds float64
	// VoicedRatio is the fraction of windows above the silence threshold.
	VoicedRatio float32
	// RMS is the overall root-mean-square amplitude of the sample.
	RMS float32
	// SNREstimate is a rough voiced-to-unvoiced energy ratio in dB. Zero when
	// the sample has no unvoiced windows to estimate noise from.
	SNREstimate float32
}

// AnalyzeActivity measures speech energy in non-overlapping 20ms windows.
// silenceThreshold is an absolute RMS amplitude below which a window counts
// as silence.
func AnalyzeActivity(s *Sample, silenceThreshold float32) ActivityReport {
	if len(s.Data) == 0 || s.SampleRate <= 0 {
		return ActivityReport{}
	}

	windowLen := int(float64(s.SampleRate) * activityWindowSec)
	if windowLen <= 0 {
		windowLen = 1
	}

	var (
		report       ActivityReport
		totalEnergy  float64
		voicedEnergy float64
		noiseEnergy  float64
		voiced       int
		unvoiced     int
		run          int
		longestRun   int
	)

	windows := 0
	for start := 0; start+windowLen <= len(s.Data); start += windowLen {
		var energy float64
		for _, v := range s.Data[start : start+windowLen] {
			energy += float64(v) * float64(v)
		}
		rms := math.Sqrt(energy / float64(windowLen))
		totalEnergy += energy
		windows++

		if rms >= float64(silenceThreshold) {
			voiced++
			run++
			voicedEnergy += energy
			if run > longestRun {
				longestRun = run
			}
		} else {
			unvoiced++
			run = 0
			noiseEnergy += energy
		}
	}

	if windows == 0 {
		return report
	}

	report.VoicedSeconds = float64(longestRun) * activityWindowSec
	report.VoicedRatio = float32(voiced) / float32(windows)
	report.RMS = float32(math.Sqrt(totalEnergy / float64(windows*windowLen)))

	if voiced > 0 && unvoiced > 0 {
		voicedRMS := math.Sqrt(voicedEnergy / float64(voiced*windowLen))
		noiseRMS := math.Sqrt(noiseEnergy / float64(unvoiced*windowLen))
		if noiseRMS > 0 {
			report.SNREstimate = float32(20 * math.Log10(voicedRMS/noiseRMS))
		}
	}

	return report
}
