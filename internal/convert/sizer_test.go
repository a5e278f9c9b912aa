// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeImage saves a blank PNG of the given size under dir.
func writeImage(t *testing.T, dir, name string, width, height int) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(imaging.New(width, height, color.White), path))
}

func TestDirSizer(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 40, 30)
	writeImage(t, dir, "sub/b.png", 12, 34)
	writeImage(t, dir, "c.png", 7, 9)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not an image"), 0o644))

	tests := []struct {
		name    string
		image   string
		wantW   int
		wantH   int
		wantErr bool
	}{
		{name: "direct", image: "a.png", wantW: 40, wantH: 30},
		{name: "sub-directory", image: "sub/b.png", wantW: 12, wantH: 34},
		{name: "falls back to base name", image: "upload/c.png", wantW: 7, wantH: 9},
		{name: "missing", image: "nope.png", wantErr: true},
		{name: "undecodable", image: "broken.png", wantErr: true},
	}

	s := DirSizer{Dir: dir}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := s.ImageSize(tt.image)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestConvert_WithDirSizer(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "frame.png", 64, 48)

	res, err := New(WithImageSizer(DirSizer{Dir: dir})).Convert(
		[]byte(`<root><image name="frame.png"><polygon points="1,1;2,2"/></image></root>`))
	require.NoError(t, err)

	doc := decode(t, res, "frame.json")
	assert.Equal(t, 64, doc.ImageWidth)
	assert.Equal(t, 48, doc.ImageHeight)
}
