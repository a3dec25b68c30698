// Package dicomtest writes minimal single-frame CT slices in explicit VR
// little endian, enough for the dicomseries reader to parse headers and
// native 16 bit pixels.
package dicomtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
	"github.com/suyashkumar/dicom/frame"
	"github.com/suyashkumar/dicom/write"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ctImageStorage         = "1.2.840.10008.5.1.4.1.1.2"
)

var (
	tagSamplesPerPixel           = dicomtag.Tag{Group: 0x0028, Element: 0x0002}
	tagPhotometricInterpretation = dicomtag.Tag{Group: 0x0028, Element: 0x0004}
	tagHighBit                   = dicomtag.Tag{Group: 0x0028, Element: 0x0102}
	tagModality                  = dicomtag.Tag{Group: 0x0008, Element: 0x0060}
	tagSeriesInstanceUID         = dicomtag.Tag{Group: 0x0020, Element: 0x000E}
)

// Slice is the content of one synthetic DICOM file. Pixels are row major
// stored values; they are written as two's complement when Signed is set.
type Slice struct {
	InstanceNumber int
	PositionZ      float64

	// When false the corresponding element is omitted.
	HasPositionZ bool

	Rows, Cols     int
	PixelSpacing   [2]float64
	SliceThickness float64

	RescaleSlope     float64
	RescaleIntercept float64

	Signed bool
	Pixels []int
}

func ds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DataSet builds the elements of s, meta group first, in tag order.
func DataSet(s Slice) (*element.DataSet, error) {
	if s.Rows*s.Cols != len(s.Pixels) {
		return nil, fmt.Errorf("%d pixels for a %dx%d slice", len(s.Pixels), s.Rows, s.Cols)
	}

	representation := uint16(0)
	if s.Signed {
		representation = 1
	}

	// The writer emits each sample's low 16 bits, so negative values land
	// as their two's complement bit pattern.
	native := frame.NativeFrame{
		Rows:          s.Rows,
		Cols:          s.Cols,
		BitsPerSample: 16,
		Data:          make([][]int, len(s.Pixels)),
	}
	for i, v := range s.Pixels {
		native.Data[i] = []int{int(uint16(int16(v)))}
	}

	type value struct {
		tag    dicomtag.Tag
		values []interface{}
	}
	values := []value{
		{dicomtag.MediaStorageSOPClassUID, []interface{}{ctImageStorage}},
		{dicomtag.MediaStorageSOPInstanceUID, []interface{}{"1.2.826.0.1.3680043.2.1125.1." + strconv.Itoa(s.InstanceNumber)}},
		{dicomtag.TransferSyntaxUID, []interface{}{explicitVRLittleEndian}},
		{tagModality, []interface{}{"CT"}},
		{dicomtag.SliceThickness, []interface{}{ds(s.SliceThickness)}},
		{tagSeriesInstanceUID, []interface{}{"1.2.826.0.1.3680043.2.1125.1"}},
		{dicomtag.InstanceNumber, []interface{}{strconv.Itoa(s.InstanceNumber)}},
	}
	if s.HasPositionZ {
		values = append(values, value{dicomtag.ImagePositionPatient, []interface{}{"0", "0", ds(s.PositionZ)}})
	}
	values = append(values,
		value{tagSamplesPerPixel, []interface{}{uint16(1)}},
		value{tagPhotometricInterpretation, []interface{}{"MONOCHROME2"}},
		value{dicomtag.Rows, []interface{}{uint16(s.Rows)}},
		value{dicomtag.Columns, []interface{}{uint16(s.Cols)}},
		value{dicomtag.PixelSpacing, []interface{}{ds(s.PixelSpacing[0]), ds(s.PixelSpacing[1])}},
		value{dicomtag.BitsAllocated, []interface{}{uint16(16)}},
		value{dicomtag.BitsStored, []interface{}{uint16(16)}},
		value{tagHighBit, []interface{}{uint16(15)}},
		value{dicomtag.PixelRepresentation, []interface{}{representation}},
		value{dicomtag.RescaleIntercept, []interface{}{ds(s.RescaleIntercept)}},
		value{dicomtag.RescaleSlope, []interface{}{ds(s.RescaleSlope)}},
		value{dicomtag.PixelData, []interface{}{element.PixelDataInfo{Frames: []frame.Frame{{NativeData: native}}}}},
	)

	out := &element.DataSet{}
	for _, v := range values {
		elem, err := element.NewElement(v.tag, v.values...)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", v.tag, err)
		}
		out.Elements = append(out.Elements, elem)
	}

	return out, nil
}

// WriteFile writes s to dir/name, creating dir as needed.
func WriteFile(dir, name string, s Slice) error {
	dataSet, err := DataSet(s)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return write.DataSetToFile(filepath.Join(dir, name), dataSet)
}
