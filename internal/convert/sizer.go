// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// DirSizer looks up image sizes by decoding the image files found in Dir.
// EXIF orientation is applied, so a rotated JPEG reports the size it is
// displayed at.
type DirSizer struct {
	Dir string
}

// ImageSize implements ImageSizer. The image is looked up at Dir/name and,
// failing that, at Dir/<base name>, since CVAT names often carry the
// sub-directory they were uploaded from.
func (s DirSizer) ImageSize(name string) (int, int, error) {
	candidates := []string{filepath.Join(s.Dir, filepath.FromSlash(name))}
	if base := filepath.Base(filepath.FromSlash(name)); base != name {
		candidates = append(candidates, filepath.Join(s.Dir, base))
	}

	var lastErr error
	for _, path := range candidates {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			lastErr = err
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, 0, fmt.Errorf("decoding %s: %w", path, err)
		}
		b := img.Bounds()
		return b.Dx(), b.Dy(), nil
	}
	return 0, 0, fmt.Errorf("image %s not found in %s: %w", name, s.Dir, lastErr)
}
