package ffmpeg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mydia/mydia/internal/domain"
)

var (
	ErrEmptyPath     = errors.New("path is empty")
	ErrInvalidPath   = errors.New("path contains invalid characters")
	ErrUnknownPreset = errors.New("unknown resolution preset")
)

// presetHeights maps each supported preset to its target frame height.
// Width is derived by ffmpeg to keep the aspect ratio (even value).
var presetHeights = map[domain.Resolution]int{
	domain.Resolution480p:  480,
	domain.Resolution720p:  720,
	domain.Resolution1080p: 1080,
}

// presetArgs builds the encode arguments for one resolution preset.
func presetArgs(resolution domain.Resolution) ([]string, error) {
	height, ok := presetHeights[resolution]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, resolution)
	}
	return []string{
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-c:v", "libx264",
		"-crf", "23",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
	}, nil
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	return nil
}
