// Package cbctmar holds the pieces shared by every stage of the CBCT
// conversion and MAR comparison tooling: the error taxonomy and the helpers
// that open (possibly remote, possibly compressed) inputs.
package cbctmar

import "errors"

var (
	// ErrNotFound marks a required input file or directory that is absent,
	// e.g. no matching case file for a key or an empty DICOM directory.
	ErrNotFound = errors.New("not found")

	// ErrShapeMismatch marks planes or volumes whose shapes should agree but
	// do not.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnsupportedRank marks a volume that is neither 3-D nor 4-D with a
	// singleton last axis.
	ErrUnsupportedRank = errors.New("unsupported rank")

	// ErrResampling marks a non-finite or non-positive zoom factor.
	ErrResampling = errors.New("resampling error")

	// ErrInvalidArgument marks a caller supplied value outside its domain.
	ErrInvalidArgument = errors.New("invalid argument")
)
