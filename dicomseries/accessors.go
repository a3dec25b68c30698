package dicomseries

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/dicomtag"
)

// Tags the dicomtag package does not name in the version we build against.
var (
	tagSOPClassUID             = dicomtag.Tag{Group: 0x0008, Element: 0x0016}
	tagModality                = dicomtag.Tag{Group: 0x0008, Element: 0x0060}
	tagManufacturer            = dicomtag.Tag{Group: 0x0008, Element: 0x0070}
	tagManufacturerModelName   = dicomtag.Tag{Group: 0x0008, Element: 0x1090}
	tagKVP                     = dicomtag.Tag{Group: 0x0018, Element: 0x0060}
	tagSpacingBetweenSlices    = dicomtag.Tag{Group: 0x0018, Element: 0x0088}
	tagConvolutionKernel       = dicomtag.Tag{Group: 0x0018, Element: 0x1210}
	tagStudyInstanceUID        = dicomtag.Tag{Group: 0x0020, Element: 0x000D}
	tagSeriesInstanceUID       = dicomtag.Tag{Group: 0x0020, Element: 0x000E}
	tagImageOrientationPatient = dicomtag.Tag{Group: 0x0020, Element: 0x0037}
)

func (t Tags) first(tag dicomtag.Tag) (interface{}, bool) {
	values, exists := t[tag]
	if !exists || len(values) == 0 || values[0] == nil {
		return nil, false
	}

	return values[0], true
}

// stringValue returns the first value of tag as text, or def when absent.
func (t Tags) stringValue(tag dicomtag.Tag, def string) string {
	v, ok := t.first(tag)
	if !ok {
		return def
	}

	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(strings.TrimRight(string(x), "\x00"))
	}

	return fmt.Sprint(v)
}

// floatValue parses the value at position idx of tag. Decimal and integer
// strings as well as binary numeric VRs are accepted.
func (t Tags) floatValue(tag dicomtag.Tag, idx int) (float64, bool) {
	values := t[tag]
	if idx < 0 || idx >= len(values) {
		return 0, false
	}

	return toFloat(values[idx])
}

// floatsValue parses every value of tag, failing as a whole if any value
// does not parse.
func (t Tags) floatsValue(tag dicomtag.Tag) ([]float64, bool) {
	values := t[tag]
	if len(values) == 0 {
		return nil, false
	}

	out := make([]float64, 0, len(values))
	for _, v := range values {
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}

	return out, true
}

func (t Tags) intValue(tag dicomtag.Tag) (int, bool) {
	v, ok := t.first(tag)
	if !ok {
		return 0, false
	}

	if s, isString := v.(string); isString {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}

	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}

	return int(f), true
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case uint16:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int32:
		return float64(x), true
	case int:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}

	return 0, false
}

// displayValue renders tag for human-facing summaries: single values as is,
// multi-valued numeric tags as a bracketed list.
func (t Tags) displayValue(tag dicomtag.Tag) (string, bool) {
	values := t[tag]
	if len(values) == 0 {
		return "", false
	}
	if len(values) == 1 {
		return t.stringValue(tag, ""), true
	}

	if floats, ok := t.floatsValue(tag); ok {
		parts := make([]string, len(floats))
		for i, f := range floats {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ", ") + "]", true
	}

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strings.TrimSpace(fmt.Sprint(v))
	}

	return strings.Join(parts, `\`), true
}
