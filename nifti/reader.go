package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"cloud.google.com/go/storage"
	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/volume"
	"github.com/carbocation/pfx"
)

var _ volume.SliceSource = (*Reader)(nil)

// Reader gives slice-at-a-time access to a NIfTI-1 file. Values returned by
// ReadSlice are the stored values; apply Scaling to obtain physical units.
type Reader struct {
	Path   string
	Header Header

	order       binary.ByteOrder
	src         io.ReaderAt
	closer      io.Closer
	shape       [3]int
	voxOffset   int64
	voxelBytes  int
	compression cbctmar.DataType
}

// Open parses the header of the NIfTI file at path (local, or gs:// when a
// client is given) and validates its rank. Uncompressed files stay on disk
// and are read one slice at a time; compressed files are inflated once into
// memory.
func Open(path string, client *storage.Client) (*Reader, error) {
	f, size, err := cbctmar.MaybeOpen(path, client)
	if err != nil {
		return nil, err
	}

	compression, err := cbctmar.DetectDataType(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}

	r := &Reader{Path: path, compression: compression}

	if compression == cbctmar.DataTypeNoCompression {
		r.src, r.closer = f, f
	} else {
		rc, _, err := cbctmar.MaybeDecompress(f, size)
		if err != nil {
			f.Close()
			return nil, pfx.Err(err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		f.Close()
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: inflating %s: %w", path, compression, err))
		}
		r.src = bytes.NewReader(raw)
	}

	if err := r.init(); err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return r, nil
}

func (r *Reader) init() error {
	h, order, err := decodeHeader(io.NewSectionReader(r.src, 0, headerSize))
	if err != nil {
		return err
	}
	r.Header, r.order = h, order

	if r.shape, err = h.volumeShape(); err != nil {
		return err
	}

	r.voxelBytes = bytesPerVoxel(h.DataType)
	if r.voxelBytes == 0 {
		return fmt.Errorf("datatype %d is not supported: %w", h.DataType, cbctmar.ErrInvalidArgument)
	}

	r.voxOffset = int64(h.VoxOffset)
	if r.voxOffset < singleFileVoxOffset {
		r.voxOffset = singleFileVoxOffset
	}

	return nil
}

// Shape returns the (H, W, S) extent of the volume.
func (r *Reader) Shape() (h, w, s int) {
	return r.shape[0], r.shape[1], r.shape[2]
}

// Spacing returns the voxel size in mm from pixdim[1..3].
func (r *Reader) Spacing() [3]float64 {
	return r.Header.Spacing()
}

// Scaling returns the header slope and intercept, (1, 0) when absent.
func (r *Reader) Scaling() (slope, intercept float64) {
	return r.Header.Scaling()
}

// Compression reports how the file was stored.
func (r *Reader) Compression() cbctmar.DataType {
	return r.compression
}

// ReadSlice fetches axial slice k as stored on disk.
func (r *Reader) ReadSlice(k int) (*volume.Plane, error) {
	h, w, s := r.Shape()
	if k < 0 || k >= s {
		return nil, fmt.Errorf("%s: slice %d outside [0, %d): %w", r.Path, k, s, cbctmar.ErrInvalidArgument)
	}

	n := h * w
	buf := make([]byte, n*r.voxelBytes)
	off := r.voxOffset + int64(k)*int64(len(buf))

	got, err := r.src.ReadAt(buf, off)
	if err != nil && !(err == io.EOF && got == len(buf)) {
		return nil, pfx.Err(fmt.Errorf("%s: reading slice %d: %w", r.Path, k, err))
	}

	// On disk the first axis varies fastest; planes are row major.
	p := volume.NewPlane(h, w)
	for j := 0; j < w; j++ {
		for i := 0; i < h; i++ {
			m := (i + h*j) * r.voxelBytes
			p.Data[i*w+j] = r.decode(buf[m : m+r.voxelBytes])
		}
	}

	return p, nil
}

func (r *Reader) decode(b []byte) float32 {
	switch r.Header.DataType {
	case DTUint8:
		return float32(b[0])
	case DTInt8:
		return float32(int8(b[0]))
	case DTInt16:
		return float32(int16(r.order.Uint16(b)))
	case DTUint16:
		return float32(r.order.Uint16(b))
	case DTInt32:
		return float32(int32(r.order.Uint32(b)))
	case DTUint32:
		return float32(r.order.Uint32(b))
	case DTFloat32:
		return math.Float32frombits(r.order.Uint32(b))
	case DTFloat64:
		return float32(math.Float64frombits(r.order.Uint64(b)))
	}

	return 0
}

// ReadVolume reads every slice into memory, applying no scaling.
func (r *Reader) ReadVolume() (*volume.Volume, error) {
	_, _, s := r.Shape()
	planes := make([]*volume.Plane, 0, s)
	for k := 0; k < s; k++ {
		p, err := r.ReadSlice(k)
		if err != nil {
			return nil, err
		}
		planes = append(planes, p)
	}

	return volume.Assemble(planes, r.Spacing())
}

// Close releases the underlying file handle, if one is still held.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil

	return err
}

// ReadHeader parses only the header of the file at path.
func ReadHeader(path string, client *storage.Client) (Header, error) {
	r, err := Open(path, client)
	if err != nil {
		return Header{}, err
	}
	defer r.Close()

	return r.Header, nil
}
