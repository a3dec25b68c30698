package cbctmar

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// MaybeOpen opens path either as a local file or, when it carries a gs://
// prefix and a client is given, as a Google Storage object. The returned
// handle supports ReadAt, so callers can fetch single slices without
// downloading whole volumes. The size of the object is returned alongside.
func MaybeOpen(path string, client *storage.Client) (ReaderAtCloser, int64, error) {
	if strings.HasPrefix(path, "gs://") {
		if client == nil {
			return nil, 0, fmt.Errorf("%s: a Google Storage client is required for gs:// paths: %w", path, ErrInvalidArgument)
		}

		// Detect the bucket and the path to the actual file
		pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(pathParts) != 2 {
			return nil, 0, fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
		}

		handle := &GSReaderAtCloser{
			ObjectHandle: client.Bucket(pathParts[0]).Object(pathParts[1]),
			Context:      context.Background(),
		}

		attrs, err := handle.Attrs(handle.Context)
		if err == storage.ErrObjectNotExist {
			return nil, 0, fmt.Errorf("%s: %w", path, ErrNotFound)
		} else if err != nil {
			return nil, 0, pfx.Err(fmt.Errorf("%s: %s", path, err))
		}

		return handle, attrs.Size, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrNotFound)
	} else if err != nil {
		return nil, 0, pfx.Err(err)
	}
	fstat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, pfx.Err(err)
	}

	return f, fstat.Size(), nil
}

// GSReaderAtCloser decorates a Google Storage object handle with Read and
// ReadAt. Each ReadAt is its own range request.
type GSReaderAtCloser struct {
	*storage.ObjectHandle
	Context context.Context
	Reader  *storage.Reader
}

func (o *GSReaderAtCloser) Read(p []byte) (n int, err error) {
	if o.Reader == nil {
		o.Reader, err = o.NewReader(o.Context)
		if err != nil {
			return 0, err
		}
	}

	return o.Reader.Read(p)
}

// ReadAt satisfies io.ReaderAt. The range request is sized to len(p).
func (o *GSReaderAtCloser) ReadAt(p []byte, offset int64) (int, error) {
	rdr, err := o.NewRangeReader(o.Context, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rdr.Close()

	n := 0
	for n < len(p) {
		m, err := rdr.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
	}

	return n, nil
}

// Close releases the sequential reader, if one was opened.
func (o *GSReaderAtCloser) Close() error {
	if o.Reader != nil {
		return o.Reader.Close()
	}

	return nil
}
