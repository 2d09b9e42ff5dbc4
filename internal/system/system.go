package system

import (
	"fmt"
	"os/exec"
	"strings"
)

// CheckFFmpeg verifies that the ffmpeg binary can be found.
func CheckFFmpeg(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("ffmpeg not found (%s): %w", path, err)
	}
	return nil
}

// GetBestH264Encoder returns the best available H.264 encoder.
func GetBestH264Encoder(ffmpegPath string) string {
	// Приоритеты:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC)
	// 3. Software (libx264)
	out, err := exec.Command(ffmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(encoders string) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(encoders, name) {
			return name
		}
	}
	return "libx264"
}
