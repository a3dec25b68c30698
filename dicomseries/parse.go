// Package dicomseries reads the slices of a CBCT DICOM series: header
// fields needed to stack and scale them, their pixel payloads, and the
// geometric ordering of the series.
package dicomseries

import (
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

// Tags is the parsed content of one DICOM file, keyed by tag.
type Tags map[dicomtag.Tag][]interface{}

// ParseTags consumes one DICOM file and returns its elements. The pixel
// payload is skipped unless withPixels is set.
func ParseTags(dicomReader io.Reader, withPixels bool) (Tags, error) {
	dcm, err := io.ReadAll(dicomReader)
	if err != nil {
		return nil, err
	}

	p, err := dicom.NewParserFromBytes(dcm, nil)
	if err != nil {
		return nil, err
	}

	parsedData, err := SafelyDicomParse(p, dicom.ParseOptions{
		DropPixelData: !withPixels,
	})
	if parsedData == nil || err != nil {
		return nil, fmt.Errorf("Error reading dicom: %v", err)
	}

	out := make(Tags, len(parsedData.Elements))
	for _, elem := range parsedData.Elements {
		if elem == nil {
			continue
		}

		out[elem.Tag] = elem.Value
	}

	return out, nil
}

// SafelyDicomParse consumes panics emitted by the dicom library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func SafelyDicomParse(p dicom.Parser, opts dicom.ParseOptions) (parsedData *element.DataSet, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	return p.Parse(opts)
}
