package cbctmar

import (
	"compress/bzip2"
	"io"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/gzip"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeXZ
	DataTypeBZip2
)

func (d DataType) String() string {
	switch d {
	case DataTypeNoCompression:
		return "uncompressed"
	case DataTypeGzip:
		return "gzip"
	case DataTypeXZ:
		return "xz"
	case DataTypeBZip2:
		return "bzip2"
	}

	return "invalid"
}

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType sniffs the leading bytes of r to decide whether it holds a
// compressed stream. Byte code signatures from
// https://stackoverflow.com/a/19127748/199475
func DetectDataType(r io.ReaderAt) (DataType, error) {
	buff := make([]byte, 6)
	n, err := r.ReadAt(buff, 0)
	if err != nil && err != io.EOF {
		return DataTypeInvalid, err
	}
	buff = buff[:n]

Outer:
	for dt, sig := range byteCodeSigs {
		if len(buff) < len(sig) {
			continue
		}
		for position := range sig {
			if buff[position] != sig[position] {
				continue Outer
			}
		}
		return dt, nil
	}

	return DataTypeNoCompression, nil
}

// MaybeDecompress returns a stream over the decompressed content of r (which
// holds size bytes), along with the detected compression. Uncompressed input
// is returned as a plain section reader.
func MaybeDecompress(r io.ReaderAt, size int64) (io.ReadCloser, DataType, error) {
	dt, err := DetectDataType(r)
	if err != nil {
		return nil, dt, pfx.Err(err)
	}

	section := io.NewSectionReader(r, 0, size)

	switch dt {
	case DataTypeGzip:
		gzr, err := gzip.NewReader(section)
		if err != nil {
			return nil, dt, pfx.Err(err)
		}
		return gzr, dt, nil
	case DataTypeBZip2:
		return io.NopCloser(bzip2.NewReader(section)), dt, nil
	case DataTypeXZ:
		reader, err := xz.NewReader(section, 0)
		if err != nil {
			return nil, dt, pfx.Err(err)
		}
		return io.NopCloser(reader), dt, nil
	}

	return io.NopCloser(section), dt, nil
}
