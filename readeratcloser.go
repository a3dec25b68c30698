package cbctmar

import "io"

// ReaderAtCloser is what volume readers need from an input: sequential reads
// for the header, random access for individual slices, and a way to release
// the handle.
type ReaderAtCloser interface {
	io.Reader
	io.ReaderAt
	io.Closer
}
