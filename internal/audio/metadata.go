package audio

import (
	"fmt"
	"math"
)

type Metadata struct {
	Duration        string   `json:"duration"`
	DurationSeconds float64  `json:"durationSeconds"`
	Format          string   `json:"format"`
	SampleRate      int      `json:"sampleRate"`
	Channels        int      `json:"channels"`
	BitDepth        int      `json:"bitDepth"`
	FileSizeBytes   int      `json:"fileSizeBytes"`
	FileSizeMB      float64  `json:"fileSizeMB"`
	Original        Original `json:"original"`
}

type Original struct {
	Channels        int     `json:"channels"`
	SampleRate      int     `json:"sampleRate"`
	DurationSeconds float64 `json:"durationSeconds"`
}

func describe(out Buffer, size int, original Original) Metadata {
	duration := out.Duration()
	return Metadata{
		Duration:        FormatDuration(duration),
		DurationSeconds: round2(duration),
		Format:          OutputFormat,
		SampleRate:      out.SampleRate,
		Channels:        out.NumChannels(),
		BitDepth:        TargetBitDepth,
		FileSizeBytes:   size,
		FileSizeMB:      round2(float64(size) / (1 << 20)),
		Original:        original,
	}
}

// FormatDuration renders seconds as M:SS. Minutes are unbounded.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(seconds) / 60
	secs := int(math.Mod(seconds, 60))
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
