package display

import (
	"bufio"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
)

// SavePNG encodes img to path, creating the parent directory if needed.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := png.Encode(bw, img); err != nil {
		return pfx.Err(err)
	}
	if err := bw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return f.Close()
}
