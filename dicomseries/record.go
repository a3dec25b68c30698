package dicomseries

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/volume"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

// SliceRecord is one DICOM file of a series. Optional header fields carry a
// Has* companion; consumers must not read the value when it is false.
type SliceRecord struct {
	Name string

	InstanceNumber    int
	HasInstanceNumber bool

	PositionZ    float64
	HasPositionZ bool

	RescaleSlope        float64
	HasRescaleSlope     bool
	RescaleIntercept    float64
	HasRescaleIntercept bool

	Rows, Cols int

	PixelSpacing    [2]float64
	HasPixelSpacing bool

	SliceThickness    float64
	HasSliceThickness bool

	SeriesInstanceUID string

	BitsAllocated       int
	PixelRepresentation int

	// Descriptive header fields, rendered as text, keyed by DICOM keyword.
	// Only present fields are set.
	Attributes map[string]string

	// Pixels holds Rows*Cols stored values in row major order, only when the
	// payload was read.
	Pixels []int
}

// Descriptive fields collected into SliceRecord.Attributes.
var describedTags = []struct {
	Keyword string
	Tag     dicomtag.Tag
}{
	{"SeriesInstanceUID", tagSeriesInstanceUID},
	{"StudyInstanceUID", tagStudyInstanceUID},
	{"SeriesNumber", dicomtag.SeriesNumber},
	{"SeriesDescription", dicomtag.SeriesDescription},
	{"Modality", tagModality},
	{"SOPClassUID", tagSOPClassUID},
	{"Manufacturer", tagManufacturer},
	{"ManufacturerModelName", tagManufacturerModelName},
	{"ConvolutionKernel", tagConvolutionKernel},
	{"KVP", tagKVP},
	{"Rows", dicomtag.Rows},
	{"Columns", dicomtag.Columns},
	{"PixelSpacing", dicomtag.PixelSpacing},
	{"SliceThickness", dicomtag.SliceThickness},
	{"SpacingBetweenSlices", tagSpacingBetweenSlices},
	{"ImageOrientationPatient", tagImageOrientationPatient},
	{"BitsAllocated", dicomtag.BitsAllocated},
	{"BitsStored", dicomtag.BitsStored},
	{"PixelRepresentation", dicomtag.PixelRepresentation},
	{"RescaleSlope", dicomtag.RescaleSlope},
	{"RescaleIntercept", dicomtag.RescaleIntercept},
	{"InstanceNumber", dicomtag.InstanceNumber},
}

// NewSliceRecord extracts the header fields of a parsed file. Pixels are
// decoded when the tags include a payload.
func NewSliceRecord(name string, tags Tags) (*SliceRecord, error) {
	rec := &SliceRecord{
		Name:       name,
		Attributes: make(map[string]string),
	}

	rec.InstanceNumber, rec.HasInstanceNumber = tags.intValue(dicomtag.InstanceNumber)
	rec.PositionZ, rec.HasPositionZ = tags.floatValue(dicomtag.ImagePositionPatient, 2)
	rec.RescaleSlope, rec.HasRescaleSlope = tags.floatValue(dicomtag.RescaleSlope, 0)
	rec.RescaleIntercept, rec.HasRescaleIntercept = tags.floatValue(dicomtag.RescaleIntercept, 0)
	rec.Rows, _ = tags.intValue(dicomtag.Rows)
	rec.Cols, _ = tags.intValue(dicomtag.Columns)

	if row, ok := tags.floatValue(dicomtag.PixelSpacing, 0); ok {
		if col, ok := tags.floatValue(dicomtag.PixelSpacing, 1); ok {
			rec.PixelSpacing = [2]float64{row, col}
			rec.HasPixelSpacing = true
		}
	}

	rec.SliceThickness, rec.HasSliceThickness = tags.floatValue(dicomtag.SliceThickness, 0)
	rec.SeriesInstanceUID = tags.stringValue(tagSeriesInstanceUID, "")
	rec.BitsAllocated, _ = tags.intValue(dicomtag.BitsAllocated)
	rec.PixelRepresentation, _ = tags.intValue(dicomtag.PixelRepresentation)

	for _, described := range describedTags {
		if v, ok := tags.displayValue(described.Tag); ok && v != "" {
			rec.Attributes[described.Keyword] = v
		}
	}

	if _, exists := tags[dicomtag.PixelData]; exists {
		pixels, err := decodePixels(tags)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rec.Pixels = rec.signed(pixels)

		if rec.Rows > 0 && rec.Cols > 0 && len(rec.Pixels) != rec.Rows*rec.Cols {
			return nil, fmt.Errorf("%s: %d pixels for a %dx%d image: %w", name, len(rec.Pixels), rec.Rows, rec.Cols, cbctmar.ErrShapeMismatch)
		}
	}

	return rec, nil
}

// ReadHeader parses the header of one DICOM file, skipping its pixels.
func ReadHeader(r io.Reader, name string) (*SliceRecord, error) {
	tags, err := ParseTags(r, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return NewSliceRecord(name, tags)
}

// ReadSlice parses one DICOM file including its pixel payload.
func ReadSlice(r io.Reader, name string) (*SliceRecord, error) {
	tags, err := ParseTags(r, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	rec, err := NewSliceRecord(name, tags)
	if err != nil {
		return nil, err
	}
	if rec.Pixels == nil {
		return nil, fmt.Errorf("%s: no pixel data: %w", name, cbctmar.ErrNotFound)
	}

	return rec, nil
}

// Scaling returns the rescale slope and intercept, defaulting to (1, 0)
// for whichever is absent.
func (s *SliceRecord) Scaling() (slope, intercept float64) {
	slope, intercept = 1.0, 0.0
	if s.HasRescaleSlope {
		slope = s.RescaleSlope
	}
	if s.HasRescaleIntercept {
		intercept = s.RescaleIntercept
	}

	return slope, intercept
}

// Plane returns the slice in physical units, stored*slope+intercept.
func (s *SliceRecord) Plane() (*volume.Plane, error) {
	if s.Pixels == nil {
		return nil, fmt.Errorf("%s: pixels were not read: %w", s.Name, cbctmar.ErrInvalidArgument)
	}
	if s.Rows*s.Cols != len(s.Pixels) {
		return nil, fmt.Errorf("%s: %d pixels for a %dx%d image: %w", s.Name, len(s.Pixels), s.Rows, s.Cols, cbctmar.ErrShapeMismatch)
	}

	slope, intercept := s.Scaling()

	return &volume.Plane{H: s.Rows, W: s.Cols, Data: volume.Rescale(s.Pixels, slope, intercept)}, nil
}

// signed reinterprets unsigned stored values as two's complement when the
// header declares signed pixels.
func (s *SliceRecord) signed(pixels []int) []int {
	if s.PixelRepresentation != 1 || s.BitsAllocated <= 0 || s.BitsAllocated > 32 {
		return pixels
	}

	half := 1 << uint(s.BitsAllocated-1)
	full := 1 << uint(s.BitsAllocated)
	for i, v := range pixels {
		if v >= half {
			pixels[i] = v - full
		}
	}

	return pixels
}

// decodePixels returns the first frame of the payload. Native frames are
// copied; encapsulated frames are decoded to an image first.
func decodePixels(tags Tags) ([]int, error) {
	v, ok := tags.first(dicomtag.PixelData)
	if !ok {
		return nil, fmt.Errorf("empty pixel data: %w", cbctmar.ErrNotFound)
	}

	data, ok := v.(element.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected pixel data type %T", v)
	}
	if len(data.Frames) == 0 {
		return nil, fmt.Errorf("pixel data holds no frames: %w", cbctmar.ErrNotFound)
	}

	frame := data.Frames[0]
	if frame.IsEncapsulated() {
		encImg, err := frame.GetImage()
		if err != nil {
			return nil, fmt.Errorf("Frame is encapsulated and could not be decoded: %s", err.Error())
		}
		return imagePixels(encImg), nil
	}

	imgPixels := make([]int, 0, len(frame.NativeData.Data))
	for j := 0; j < len(frame.NativeData.Data); j++ {
		imgPixels = append(imgPixels, frame.NativeData.Data[j][0])
	}

	return imgPixels, nil
}

func imagePixels(img image.Image) []int {
	bounds := img.Bounds()
	out := make([]int, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out = append(out, int(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y))
		}
	}

	return out
}
