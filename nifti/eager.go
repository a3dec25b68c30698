package nifti

import (
	"encoding/binary"
	"fmt"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/volume"
	"github.com/henghuang/nifti"
)

// EagerVolume is a NIfTI file held entirely in memory by the henghuang/nifti
// loader. Useful when every slice will be visited anyway.
type EagerVolume struct {
	Path   string
	Header Header

	img   nifti.Nifti1Image
	shape [3]int
}

// Source is a NIfTI volume opened for reading, lazily or in memory.
type Source interface {
	volume.SliceSource
	Scaling() (slope, intercept float64)
	Close() error
}

var (
	_ Source = (*Reader)(nil)
	_ Source = (*EagerVolume)(nil)
)

// eagerDecodable reports whether the henghuang loader returns the stored
// values of a file unchanged. It reads every sample as little endian, 2 byte
// samples as unsigned and 4 byte samples as float32.
func eagerDecodable(h Header, order binary.ByteOrder) bool {
	if order != binary.LittleEndian {
		return false
	}

	switch h.DataType {
	case DTUint8, DTUint16, DTFloat32, DTFloat64:
		return true
	}

	return false
}

// LoadEager reads the whole volume at path. The header is parsed first so
// that unsupported ranks, datatypes and byte orders fail before any voxel
// data is loaded.
func LoadEager(path string) (*EagerVolume, error) {
	r, err := Open(path, nil)
	if err != nil {
		return nil, err
	}
	r.Close()

	return loadEager(r)
}

// OpenFull opens a local volume whose every slice will be visited. Files
// the henghuang loader decodes faithfully are held in memory; the rest
// (signed integers, big endian) are read slice by slice.
func OpenFull(path string) (Source, error) {
	r, err := Open(path, nil)
	if err != nil {
		return nil, err
	}
	if !eagerDecodable(r.Header, r.order) {
		return r, nil
	}
	r.Close()

	return loadEager(r)
}

func loadEager(r *Reader) (*EagerVolume, error) {
	if !eagerDecodable(r.Header, r.order) {
		return nil, fmt.Errorf("%s: datatype %d in %v byte order cannot be loaded eagerly: %w", r.Path, r.Header.DataType, r.order, cbctmar.ErrInvalidArgument)
	}

	img, err := SafelyNiftiParse(r.Path, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Path, err)
	}

	shape := r.shape
	dims := img.GetDims()
	if len(dims) < 3 || dims[0] != shape[0] || dims[1] != shape[1] || dims[2] != shape[2] {
		return nil, fmt.Errorf("%s: loaded dims %v disagree with header shape %v: %w", r.Path, dims, shape, cbctmar.ErrShapeMismatch)
	}

	return &EagerVolume{Path: r.Path, Header: r.Header, img: img, shape: shape}, nil
}

func (e *EagerVolume) Shape() (h, w, s int) {
	return e.shape[0], e.shape[1], e.shape[2]
}

// Scaling returns the header slope and intercept, (1, 0) when absent.
func (e *EagerVolume) Scaling() (slope, intercept float64) {
	return e.Header.Scaling()
}

// Close is a no-op; the volume holds no file handle.
func (e *EagerVolume) Close() error {
	return nil
}

// ReadSlice returns slice k of the first channel.
func (e *EagerVolume) ReadSlice(k int) (*volume.Plane, error) {
	h, w, s := e.Shape()
	if k < 0 || k >= s {
		return nil, fmt.Errorf("%s: slice %d outside [0, %d): %w", e.Path, k, s, cbctmar.ErrInvalidArgument)
	}

	p := volume.NewPlane(h, w)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			p.Data[i*w+j] = float32(e.img.GetAt(i, j, k, 0))
		}
	}

	return p, nil
}

// SafelyNiftiParse consumes panics emitted by the nifti library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func SafelyNiftiParse(filename string, rdata bool) (parsedData nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsedData.LoadImage(filename, rdata)

	return
}
