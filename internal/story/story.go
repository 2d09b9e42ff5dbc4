package story

import (
	"fmt"
	"regexp"
	"strings"
)

// AspectRatio fixes the canvas geometry for a whole render.
type AspectRatio string

const (
	Widescreen AspectRatio = "widescreen"
	Vertical   AspectRatio = "vertical"
)

// ParseAspectRatio accepts both the named form and the ratio form ("16:9", "9:16").
func ParseAspectRatio(s string) (AspectRatio, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "widescreen", "16:9", "landscape":
		return Widescreen, nil
	case "vertical", "9:16", "portrait":
		return Vertical, nil
	default:
		return "", fmt.Errorf("unknown aspect ratio %q", s)
	}
}

// Dimensions returns the canvas size in pixels.
func (a AspectRatio) Dimensions() (width, height int) {
	if a == Vertical {
		return 720, 1280
	}
	return 1280, 720
}

func (a AspectRatio) IsVertical() bool {
	return a == Vertical
}

// Orientation is the word used in output file names.
func (a AspectRatio) Orientation() string {
	if a == Vertical {
		return "portrait"
	}
	return "landscape"
}

// Scene is one narrated unit: an image, its narration and optional PCM audio.
// Scenes are treated as immutable once a render starts.
type Scene struct {
	SequenceIndex int
	Narration     string
	Image         []byte
	Audio         []byte // nil when the scene has no narration audio
}

func (s Scene) HasAudio() bool {
	return len(s.Audio) > 0
}

type Story struct {
	Title       string
	Scenes      []Scene
	AspectRatio AspectRatio
}

// FileExt is the container extension of rendered stories.
const FileExt = "mp4"

var unsafeName = regexp.MustCompile(`[\s/\\:*?"<>|]+`)

// FileName returns "<title>-<orientation>.mp4" with a filesystem-safe title.
func (s *Story) FileName() string {
	title := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(s.Title), "_"), "_")
	if title == "" {
		title = "story"
	}
	return fmt.Sprintf("%s-%s.%s", title, s.AspectRatio.Orientation(), FileExt)
}
