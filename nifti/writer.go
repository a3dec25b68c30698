package nifti

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/volume"
	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/gzip"
)

type writeOptions struct {
	slope, intercept float64
	description      string
}

// WriteOption customizes the header written by Write.
type WriteOption func(*writeOptions)

// WithScaling stores a slope and intercept in the header. Readers map stored
// values x to x*slope+intercept.
func WithScaling(slope, intercept float64) WriteOption {
	return func(o *writeOptions) {
		o.slope, o.intercept = slope, intercept
	}
}

// WithDescription fills the 80 byte descrip field.
func WithDescription(descrip string) WriteOption {
	return func(o *writeOptions) {
		o.description = descrip
	}
}

// Write saves v as a float32 NIfTI-1 file with a diagonal affine built from
// v.Spacing. Paths ending in .gz are gzip compressed. Parent directories are
// created as needed.
func Write(path string, v *volume.Volume, opts ...WriteOption) error {
	if v == nil || len(v.Data) != v.H*v.W*v.S {
		return fmt.Errorf("%s: volume data does not match its shape: %w", path, cbctmar.ErrShapeMismatch)
	}
	if v.H > math.MaxInt16 || v.W > math.MaxInt16 || v.S > math.MaxInt16 {
		return fmt.Errorf("%s: shape %dx%dx%d exceeds the NIfTI-1 limit of %d per axis: %w",
			path, v.H, v.W, v.S, math.MaxInt16, cbctmar.ErrInvalidArgument)
	}

	o := writeOptions{slope: 1, intercept: 0, description: "cbctmar"}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	fw := bufio.NewWriter(f)

	var w io.Writer = fw
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(fw)
		w = gz
	}

	if err := encode(w, v, o); err != nil {
		return pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return pfx.Err(err)
		}
	}
	if err := fw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return f.Close()
}

func encode(w io.Writer, v *volume.Volume, o writeOptions) error {
	hdr := newHeader(v.H, v.W, v.S, v.Spacing, o)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}

	// Empty extension block.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}

	n := v.H * v.W
	for k := 0; k < v.S; k++ {
		if err := binary.Write(w, binary.LittleEndian, v.Data[k*n:(k+1)*n]); err != nil {
			return err
		}
	}

	return nil
}
