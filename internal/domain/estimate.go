package domain

import "fmt"

// EstimateBytes approximates an uncompressed RGBA buffer. It is a display
// hint and says nothing about the encoded size.
func EstimateBytes(width, height int) int64 {
	return int64(width) * int64(height) * 4
}

func FormatSize(bytes int64) string {
	kb := float64(bytes) / 1024
	if kb > 1024 {
		return fmt.Sprintf("%.2f MB", kb/1024)
	}
	return fmt.Sprintf("%.2f KB", kb)
}

type SizeEstimate struct {
	Bytes int64  `json:"bytes"`
	Human string `json:"human"`
}

func Estimate(d Dimensions) SizeEstimate {
	bytes := EstimateBytes(d.Width, d.Height)
	return SizeEstimate{Bytes: bytes, Human: FormatSize(bytes)}
}
