// Package nifti reads and writes single-file NIfTI-1 volumes (.nii and
// compressed .nii.gz). Reads are lazy: a Reader fetches one axial slice at a
// time, so exporting a handful of slices from a large volume does not load
// the whole array.
package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/carbocation/cbctmar"
)

// Header mirrors the 348 byte NIfTI-1 header, see
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
type Header struct {
	SizeOfHdr      int32
	DataTypeUnused [10]byte
	DBName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        byte
	DimInfo        byte

	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	DataType      int16
	BitPix        int16
	SliceStart    int16
	PixDim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32

	Descrip [80]byte
	AuxFile [24]byte

	QFormCode int16
	SFormCode int16

	QuaternB float32
	QuaternC float32
	QuaternD float32
	QOffsetX float32
	QOffsetY float32
	QOffsetZ float32

	SRowX [4]float32
	SRowY [4]float32
	SRowZ [4]float32

	IntentName [16]byte
	Magic      [4]byte
}

const (
	headerSize = 348

	// Single file layout: header, 4 extension bytes, then voxels.
	singleFileVoxOffset = 352
)

// NIfTI datatype codes we can decode.
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
)

const (
	unitsMM      = 2
	xformAligned = 2
)

// bytesPerVoxel returns the storage size of a datatype code, or 0 when the
// code is not supported.
func bytesPerVoxel(dt int16) int {
	switch dt {
	case DTUint8, DTInt8:
		return 1
	case DTInt16, DTUint16:
		return 2
	case DTInt32, DTUint32, DTFloat32:
		return 4
	case DTFloat64:
		return 8
	}

	return 0
}

// decodeHeader reads a header from r, detecting its byte order from the
// sizeof_hdr field.
func decodeHeader(r io.Reader) (Header, binary.ByteOrder, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, nil, fmt.Errorf("reading NIfTI header: %w", err)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(raw[:4]) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(raw[:4]) == headerSize:
		order = binary.BigEndian
	default:
		return Header{}, nil, fmt.Errorf("not a NIfTI-1 file (sizeof_hdr is not %d): %w", headerSize, cbctmar.ErrInvalidArgument)
	}

	var h Header
	if err := binary.Read(bytes.NewReader(raw), order, &h); err != nil {
		return Header{}, nil, err
	}

	return h, order, nil
}

// Rank is the number of dimensions the header declares.
func (h Header) Rank() int {
	return int(h.Dim[0])
}

// Spacing is the voxel size of the first three axes.
func (h Header) Spacing() [3]float64 {
	return [3]float64{float64(h.PixDim[1]), float64(h.PixDim[2]), float64(h.PixDim[3])}
}

// Scaling returns the header's slope and intercept, defaulting to (1, 0)
// when the file stores none (a zero or non-finite slope).
func (h Header) Scaling() (slope, intercept float64) {
	slope, intercept = float64(h.SclSlope), float64(h.SclInter)
	if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 1.0, 0.0
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		intercept = 0.0
	}

	return slope, intercept
}

// Description is the descrip field with trailing NULs removed.
func (h Header) Description() string {
	return strings.TrimRight(string(h.Descrip[:]), "\x00")
}

// volumeShape validates the rank of the header and returns the (H, W, S)
// shape that slice access exposes. 4-D volumes whose last axis is a
// singleton collapse onto their first (only) channel.
func (h Header) volumeShape() ([3]int, error) {
	var shape [3]int

	switch rank := h.Rank(); {
	case rank == 3:
	case rank == 4 && h.Dim[4] == 1:
	default:
		dims := h.Dim[1:]
		if rank >= 1 && rank <= 7 {
			dims = h.Dim[1 : rank+1]
		}
		return shape, fmt.Errorf("only 3-D volumes (or 4-D with one channel) are supported, got rank %d with dims %v: %w", rank, dims, cbctmar.ErrUnsupportedRank)
	}

	for axis := range shape {
		shape[axis] = int(h.Dim[axis+1])
		if shape[axis] < 1 {
			return shape, fmt.Errorf("axis %d has length %d: %w", axis, shape[axis], cbctmar.ErrUnsupportedRank)
		}
	}

	return shape, nil
}

// newHeader builds the header for a float32 volume with a diagonal affine
// (sx, sy, sz, 1). Origin and rotation are not encoded.
func newHeader(h, w, s int, spacing [3]float64, o writeOptions) Header {
	var hdr Header

	hdr.SizeOfHdr = headerSize
	hdr.Regular = 'r'
	hdr.Dim = [8]int16{3, int16(h), int16(w), int16(s), 1, 1, 1, 1}
	hdr.DataType = DTFloat32
	hdr.BitPix = 32
	hdr.PixDim = [8]float32{1, float32(spacing[0]), float32(spacing[1]), float32(spacing[2]), 1, 1, 1, 1}
	hdr.VoxOffset = singleFileVoxOffset
	hdr.SclSlope = float32(o.slope)
	hdr.SclInter = float32(o.intercept)
	hdr.XYZTUnits = unitsMM
	copy(hdr.Descrip[:], o.description)

	hdr.QFormCode = 0
	hdr.SFormCode = xformAligned
	hdr.SRowX = [4]float32{float32(spacing[0]), 0, 0, 0}
	hdr.SRowY = [4]float32{0, float32(spacing[1]), 0, 0}
	hdr.SRowZ = [4]float32{0, 0, float32(spacing[2]), 0}

	hdr.Magic = [4]byte{'n', '+', '1', 0}

	return hdr
}
