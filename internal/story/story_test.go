package story

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		title  string
		aspect AspectRatio
		want   string
	}{
		{"The Lost Kite", Widescreen, "The_Lost_Kite-landscape.mp4"},
		{"月亮的故事", Vertical, "月亮的故事-portrait.mp4"},
		{"  a/b  ", Widescreen, "a_b-landscape.mp4"},
		{"", Vertical, "story-portrait.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			s := &Story{Title: tt.title, AspectRatio: tt.aspect}
			if got := s.FileName(); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDimensions(t *testing.T) {
	w, h := Widescreen.Dimensions()
	if w != 1280 || h != 720 {
		t.Errorf("Widescreen: expected 1280x720, got %dx%d", w, h)
	}
	w, h = Vertical.Dimensions()
	if w != 720 || h != 1280 {
		t.Errorf("Vertical: expected 720x1280, got %dx%d", w, h)
	}
}

func TestParseAspectRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    AspectRatio
		wantErr bool
	}{
		{"16:9", Widescreen, false},
		{"9:16", Vertical, false},
		{"Vertical", Vertical, false},
		{"", Widescreen, false},
		{"4:3", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAspectRatio(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadStory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.png"), []byte("img-a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.pcm"), []byte{1, 2, 3, 4}, 0644); err != nil {
		t.Fatal(err)
	}

	second, first := 1, 0
	m := &Manifest{
		Title:       "Kite",
		AspectRatio: "9:16",
		Scenes: []ManifestScene{
			{Index: &second, Narration: "two", Image: "missing.png", Audio: "b.pcm"},
			{Index: &first, Narration: "one", Image: "a.png"},
		},
	}
	path := filepath.Join(dir, "story.yaml")
	if err := WriteManifest(m, path); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}

	st, err := LoadStory(path)
	if err != nil {
		t.Fatalf("LoadStory failed: %v", err)
	}

	if st.AspectRatio != Vertical {
		t.Errorf("Expected vertical, got %s", st.AspectRatio)
	}
	if len(st.Scenes) != 2 {
		t.Fatalf("Expected 2 scenes, got %d", len(st.Scenes))
	}
	if st.Scenes[0].Narration != "one" || !bytes.Equal(st.Scenes[0].Image, []byte("img-a")) {
		t.Errorf("Scene 0 not sorted first: %+v", st.Scenes[0])
	}
	if st.Scenes[0].HasAudio() {
		t.Error("Scene 0 should have no audio")
	}
	if st.Scenes[1].Image != nil {
		t.Error("Missing image should leave empty bytes")
	}
	if !st.Scenes[1].HasAudio() {
		t.Error("Scene 1 should carry audio bytes")
	}
}

func TestLoadStoryMissingAudio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.yaml")
	m := &Manifest{Title: "x", Scenes: []ManifestScene{{Narration: "n", Audio: "nope.pcm"}}}
	if err := WriteManifest(m, path); err != nil {
		t.Fatal(err)
	}
	st, err := LoadStory(path)
	if err != nil {
		t.Fatalf("Missing audio should not fail the story: %v", err)
	}
	if st.Scenes[0].HasAudio() {
		t.Error("Scene with unreadable audio should be silent")
	}
}

func TestManifestSequenceIndexKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.yaml")
	data := "title: Kite\nscenes:\n  - sequence_index: 5\n    narration: late\n  - sequence_index: 2\n    narration: early\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := LoadStory(path)
	if err != nil {
		t.Fatalf("LoadStory failed: %v", err)
	}
	if st.Scenes[0].SequenceIndex != 2 || st.Scenes[0].Narration != "early" {
		t.Errorf("Expected sequence_index 2 first, got %+v", st.Scenes[0])
	}
	if st.Scenes[1].SequenceIndex != 5 {
		t.Errorf("Expected sequence_index 5 second, got %d", st.Scenes[1].SequenceIndex)
	}
}

func TestFindLatestManifest(t *testing.T) {
	dir := t.TempDir()
	files := []string{"old.yaml", "newest.yml", "middle.yaml", "ignored.txt"}
	for i, f := range files {
		p := filepath.Join(dir, f)
		if err := os.WriteFile(p, []byte("title: x"), 0644); err != nil {
			t.Fatal(err)
		}
		modTime := time.Now().Add(time.Duration(i) * time.Hour)
		if f == "newest.yml" {
			modTime = time.Now().Add(24 * time.Hour)
		}
		os.Chtimes(p, modTime, modTime)
	}

	latest, err := FindLatestManifest(dir)
	if err != nil {
		t.Fatalf("FindLatestManifest failed: %v", err)
	}
	if filepath.Base(latest) != "newest.yml" {
		t.Errorf("Expected newest.yml, got %s", latest)
	}

	if _, err := FindLatestManifest(t.TempDir()); err == nil {
		t.Error("Expected error for empty directory")
	}
}
