package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-transcriber/pkg/models"
)

func TestValidateLocator(t *testing.T) {
	good := []string{"https://www.youtube.com/watch?v=abc", "http://example.com/a.mp3"}
	for _, l := range good {
		if err := ValidateLocator(l); err != nil {
			t.Errorf("ValidateLocator(%q) = %v", l, err)
		}
	}
	bad := []string{"", "   ", "not a url", "ftp://example.com/x", "/local/file.mp3", "https://"}
	for _, l := range bad {
		if err := ValidateLocator(l); !errors.Is(err, ErrInvalidSource) {
			t.Errorf("ValidateLocator(%q) = %v, want ErrInvalidSource", l, err)
		}
	}
}

func TestYTDLPInfo(t *testing.T) {
	y := NewYTDLP("yt-dlp", nil)
	var gotArgs []string
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte(`{"title":"Talk","channel":"Conf","duration":3725.4,"thumbnail":"t.jpg"}`), nil
	}
	info, err := y.Info(context.Background(), "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Title != "Talk" || info.Author != "Conf" || info.Duration != 3725.4 {
		t.Fatalf("info = %+v", info)
	}
	if gotArgs[len(gotArgs)-1] != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("locator not last arg: %v", gotArgs)
	}
}

func TestYTDLPInfoFailureIsInvalidSource(t *testing.T) {
	y := NewYTDLP("", nil)
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("ERROR: Private video")
	}
	if _, err := y.Info(context.Background(), "https://www.youtube.com/watch?v=private"); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("err = %v", err)
	}
	if _, err := y.Info(context.Background(), "nope"); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("malformed locator err = %v", err)
	}
}

func TestYTDLPFetchAudioSections(t *testing.T) {
	dir := t.TempDir()
	y := NewYTDLP("yt-dlp", nil)
	var gotArgs []string
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, os.WriteFile(filepath.Join(dir, "segment_002.mp3"), []byte("mp3"), 0o644)
	}
	seg := models.Segment{Index: 2, Start: 1080, Duration: 540}
	path, err := y.FetchAudio(context.Background(), AudioRequest{Locator: "https://x.test/v", Segment: seg, Dir: dir})
	if err != nil {
		t.Fatalf("FetchAudio: %v", err)
	}
	if path != filepath.Join(dir, "segment_002.mp3") {
		t.Fatalf("path = %q", path)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "--download-sections *1080.000-1620.000") {
		t.Fatalf("args = %s", joined)
	}
}

func TestYTDLPFetchAudioWhole(t *testing.T) {
	dir := t.TempDir()
	y := NewYTDLP("yt-dlp", nil)
	var gotArgs []string
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	}
	_, err := y.FetchAudio(context.Background(), AudioRequest{Locator: "https://x.test/v", Segment: models.Segment{Duration: 30}, Whole: true, Dir: dir})
	if err == nil {
		t.Fatal("missing output file should fail")
	}
	if strings.Contains(strings.Join(gotArgs, " "), "--download-sections") {
		t.Fatalf("whole-source fetch should not cut sections: %v", gotArgs)
	}
}
