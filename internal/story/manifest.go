package story

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk description of a story produced by the generation layer.
type Manifest struct {
	Title       string          `yaml:"title"`
	AspectRatio string          `yaml:"aspect_ratio"`
	Scenes      []ManifestScene `yaml:"scenes"`
}

// ManifestScene references the scene assets by path, relative to the manifest.
type ManifestScene struct {
	Index     *int   `yaml:"sequence_index,omitempty"`
	Narration string `yaml:"narration"`
	Image     string `yaml:"image"`
	Audio     string `yaml:"audio,omitempty"`
}

// WriteManifest writes a manifest to a YAML file
func WriteManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadManifest reads a manifest from a YAML file
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadStory reads a manifest and every asset it references. Unreadable asset
// files are not an error here: the scene keeps empty bytes, so a missing image
// renders without background and missing audio falls back to a silent scene.
func LoadStory(path string) (*Story, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	aspect, err := ParseAspectRatio(m.AspectRatio)
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(path)
	st := &Story{Title: m.Title, AspectRatio: aspect}

	for i, ms := range m.Scenes {
		scene := Scene{SequenceIndex: i, Narration: ms.Narration}
		if ms.Index != nil {
			scene.SequenceIndex = *ms.Index
		}

		if ms.Image != "" {
			img, err := os.ReadFile(resolve(baseDir, ms.Image))
			if err != nil {
				log.Printf("[!] Scene %d: image not read, rendering without background: %v", scene.SequenceIndex, err)
			} else {
				scene.Image = img
			}
		}

		if ms.Audio != "" {
			audio, err := os.ReadFile(resolve(baseDir, ms.Audio))
			if err != nil {
				log.Printf("[!] Scene %d: narration not read, scene will be silent: %v", scene.SequenceIndex, err)
			} else {
				scene.Audio = audio
			}
		}

		st.Scenes = append(st.Scenes, scene)
	}

	sort.SliceStable(st.Scenes, func(i, j int) bool {
		return st.Scenes[i].SequenceIndex < st.Scenes[j].SequenceIndex
	})

	return st, nil
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// FindLatestManifest returns the most recently modified manifest in dir.
func FindLatestManifest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, entry.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no story manifests found in %s", dir)
	}

	return latestFile, nil
}
