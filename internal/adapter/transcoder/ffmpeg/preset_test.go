package ffmpeg

import (
	"errors"
	"slices"
	"testing"

	"github.com/mydia/mydia/internal/domain"
)

func TestPresetArgs(t *testing.T) {
	tests := []struct {
		resolution domain.Resolution
		wantScale  string
		wantErr    bool
	}{
		{domain.Resolution480p, "scale=-2:480", false},
		{domain.Resolution720p, "scale=-2:720", false},
		{domain.Resolution1080p, "scale=-2:1080", false},
		{"2160p", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		args, err := presetArgs(tt.resolution)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownPreset) {
				t.Errorf("presetArgs(%q) err = %v, want ErrUnknownPreset", tt.resolution, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("presetArgs(%q) err = %v", tt.resolution, err)
			continue
		}
		if !slices.Contains(args, tt.wantScale) {
			t.Errorf("presetArgs(%q) = %v, missing %q", tt.resolution, args, tt.wantScale)
		}
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "valid path", path: "/tmp/video.mp4", wantErr: nil},
		{name: "valid path with spaces", path: "/tmp/my video.mp4", wantErr: nil},
		{name: "valid relative path", path: "video.mp4", wantErr: nil},
		{name: "empty path", path: "", wantErr: ErrEmptyPath},
		{name: "null byte at start", path: "\x00/tmp/video.mp4", wantErr: ErrInvalidPath},
		{name: "null byte in middle", path: "/tmp/\x00video.mp4", wantErr: ErrInvalidPath},
		{name: "null byte at end", path: "/tmp/video.mp4\x00", wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validatePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
