package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the render profile shared by the compositor stages.
type Config struct {
	FPS              int           `yaml:"fps"`
	SampleRate       int           `yaml:"sample_rate"`
	VideoEncoder     string        `yaml:"video_encoder"`
	VideoBitrateKbps int           `yaml:"video_bitrate_kbps"`
	AudioBitrateKbps int           `yaml:"audio_bitrate_kbps"`
	// FontPath is a TTF/OTF for subtitles. The built-in Go Bold has no CJK
	// glyphs, so Chinese or Japanese narration needs e.g. Noto Sans CJK here.
	FontPath         string        `yaml:"font_path"`
	InputAudio       AudioFormat   `yaml:"input_audio"`
	DecodeTimeout    time.Duration `yaml:"decode_timeout"`
	PreloadWorkers   int           `yaml:"preload_workers"`
	OutputDir        string        `yaml:"output_dir"`
	ShareURL         string        `yaml:"share_url"`
	ShowStats        bool          `yaml:"show_stats"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	BuildVersion     string        `yaml:"-"`
}

// AudioFormat describes raw PCM s16le narration as produced upstream.
type AudioFormat struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

func Default() *Config {
	return &Config{
		FPS:              60,
		SampleRate:       48000,
		VideoBitrateKbps: 5000,
		AudioBitrateKbps: 128,
		InputAudio:       AudioFormat{SampleRate: 24000, Channels: 1},
		DecodeTimeout:    5 * time.Second,
		PreloadWorkers:   runtime.NumCPU(),
		OutputDir:        "output",
		FFmpegPath:       "ffmpeg",
	}
}

// Load reads a YAML profile on top of the defaults. Keys missing from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.FPS <= 0:
		return fmt.Errorf("invalid fps %d", c.FPS)
	case c.SampleRate <= 0:
		return fmt.Errorf("invalid sample_rate %d", c.SampleRate)
	case c.VideoBitrateKbps <= 0 || c.AudioBitrateKbps <= 0:
		return fmt.Errorf("bitrates must be positive (video %d, audio %d)", c.VideoBitrateKbps, c.AudioBitrateKbps)
	case c.InputAudio.SampleRate <= 0:
		return fmt.Errorf("invalid input_audio.sample_rate %d", c.InputAudio.SampleRate)
	case c.InputAudio.Channels < 1 || c.InputAudio.Channels > 2:
		return fmt.Errorf("input_audio.channels must be 1 or 2, got %d", c.InputAudio.Channels)
	case c.DecodeTimeout <= 0:
		return fmt.Errorf("invalid decode_timeout %s", c.DecodeTimeout)
	}
	if c.PreloadWorkers <= 0 {
		c.PreloadWorkers = 1
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	return nil
}

// FrameInterval is the pacing delay between two painted frames.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}
