package dicomseries

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/dicomseries/dicomtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/dicomtag"
)

func zRecords(zs ...float64) []*SliceRecord {
	out := make([]*SliceRecord, len(zs))
	for i, z := range zs {
		out[i] = &SliceRecord{
			Name:              string(rune('a' + i)),
			PositionZ:         z,
			HasPositionZ:      true,
			InstanceNumber:    len(zs) - i,
			HasInstanceNumber: true,
		}
	}

	return out
}

func TestOrder(t *testing.T) {
	cases := []struct {
		Name      string
		Records   []*SliceRecord
		Want      []int
		Direction Direction
		Fallback  bool
		Step      float64
	}{
		{"increasing", zRecords(-10, -9.5, -9, -8.5), []int{0, 1, 2, 3}, DirectionIncreasing, false, 0.5},
		{"decreasing", zRecords(3, 2, 1, 0), []int{3, 2, 1, 0}, DirectionIncreasing, false, 1},
		// All at one z: instance numbers (4, 3, 2, 1) decide.
		{"colocated", zRecords(5, 5, 5, 5), []int{3, 2, 1, 0}, DirectionColocated, false, 0},
		{"shuffled", zRecords(2, 0, 1), []int{1, 2, 0}, DirectionIncreasing, false, 1},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			perm, report := Order(c.Records)
			assert.Equal(t, c.Want, perm)
			assert.Equal(t, c.Direction, report.Direction)
			assert.Equal(t, c.Fallback, report.Fallback)
			assert.InDelta(t, c.Step, report.MedianStep, 1e-9)
		})
	}
}

func TestOrderFallsBackToInstanceNumber(t *testing.T) {
	records := []*SliceRecord{
		{Name: "a", InstanceNumber: 3, HasInstanceNumber: true, PositionZ: 100, HasPositionZ: true},
		{Name: "b", InstanceNumber: 1, HasInstanceNumber: true},
		{Name: "c", InstanceNumber: 2, HasInstanceNumber: true},
	}

	perm, report := Order(records)
	assert.Equal(t, []int{1, 2, 0}, perm)
	assert.True(t, report.Fallback)
	assert.Equal(t, DirectionUnknown, report.Direction)
	assert.Contains(t, report.String(), "instance number")
}

func TestOrderPlacesSlicesWithoutZLast(t *testing.T) {
	records := []*SliceRecord{
		{Name: "a", PositionZ: 2, HasPositionZ: true, InstanceNumber: 1, HasInstanceNumber: true},
		{Name: "b", InstanceNumber: 9, HasInstanceNumber: true},
		{Name: "c", PositionZ: 1, HasPositionZ: true, InstanceNumber: 3, HasInstanceNumber: true},
		{Name: "d", InstanceNumber: 0, HasInstanceNumber: true},
	}

	perm, report := Order(records)
	assert.Equal(t, []int{2, 0, 3, 1}, perm)
	assert.False(t, report.Fallback)
	assert.Equal(t, DirectionIncreasing, report.Direction)
}

func TestOrderNearlyEqualZBreaksTiesByInstance(t *testing.T) {
	records := []*SliceRecord{
		{Name: "a", PositionZ: 1.0000004, HasPositionZ: true, InstanceNumber: 2, HasInstanceNumber: true},
		{Name: "b", PositionZ: 1, HasPositionZ: true, InstanceNumber: 3, HasInstanceNumber: true},
		{Name: "c", PositionZ: 1.0000008, HasPositionZ: true, InstanceNumber: 1, HasInstanceNumber: true},
		{Name: "d", PositionZ: 0.5, HasPositionZ: true, InstanceNumber: 4, HasInstanceNumber: true},
	}

	// a, b and c chain within tolerance and share one rank.
	perm, _ := Order(records)
	assert.Equal(t, []int{3, 2, 0, 1}, perm)
}

func TestOrderStableWithoutKeys(t *testing.T) {
	records := []*SliceRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	perm, report := Order(records)
	assert.Equal(t, []int{0, 1, 2}, perm)
	assert.True(t, report.Fallback)
	assert.Contains(t, report.String(), "unreliable")
}

func TestNewSliceRecord(t *testing.T) {
	tags := Tags{
		dicomtag.InstanceNumber:       {"12 "},
		dicomtag.ImagePositionPatient: {"-10.5", "3", "42.25"},
		dicomtag.RescaleSlope:         {"2"},
		dicomtag.Rows:                 {uint16(2)},
		dicomtag.Columns:              {uint16(3)},
		dicomtag.PixelSpacing:         {"0.25", "0.3"},
		dicomtag.BitsAllocated:        {uint16(16)},
		dicomtag.PixelRepresentation:  {uint16(1)},
		tagSeriesInstanceUID:          {"1.2.3"},
		tagImageOrientationPatient:    {"1", "0", "0", "0", "1", "0"},
		dicomtag.SliceThickness:       {"not a number"},
	}

	rec, err := NewSliceRecord("x.dcm", tags)
	require.NoError(t, err)

	assert.True(t, rec.HasInstanceNumber)
	assert.Equal(t, 12, rec.InstanceNumber)
	assert.True(t, rec.HasPositionZ)
	assert.Equal(t, 42.25, rec.PositionZ)
	assert.Equal(t, [2]float64{0.25, 0.3}, rec.PixelSpacing)
	assert.False(t, rec.HasSliceThickness)
	assert.False(t, rec.HasRescaleIntercept)
	assert.Equal(t, "1.2.3", rec.SeriesInstanceUID)
	assert.Equal(t, "[1, 0, 0, 0, 1, 0]", rec.Attributes["ImageOrientationPatient"])
	assert.Equal(t, "2", rec.Attributes["Rows"])
	assert.Nil(t, rec.Pixels)

	slope, intercept := rec.Scaling()
	assert.Equal(t, 2.0, slope)
	assert.Equal(t, 0.0, intercept)

	_, err = rec.Plane()
	assert.ErrorIs(t, err, cbctmar.ErrInvalidArgument)

	rec.Pixels = rec.signed([]int{0, 1, 65535, 32768, 32767, 10})
	assert.Equal(t, []int{0, 1, -1, -32768, 32767, 10}, rec.Pixels)

	p, err := rec.Plane()
	require.NoError(t, err)
	assert.Equal(t, 2, p.H)
	assert.Equal(t, 3, p.W)
	assert.Equal(t, []float32{0, 2, -2, -65536, 65534, 20}, p.Data)
}

func TestAccessorDefaults(t *testing.T) {
	tags := Tags{dicomtag.SeriesDescription: {}}

	assert.Equal(t, "fallback", tags.stringValue(dicomtag.SeriesDescription, "fallback"))
	_, ok := tags.floatValue(dicomtag.RescaleSlope, 0)
	assert.False(t, ok)
	_, ok = tags.intValue(dicomtag.Rows)
	assert.False(t, ok)
	_, ok = tags.floatsValue(dicomtag.PixelSpacing)
	assert.False(t, ok)
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
}

func TestOpenSeriesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cbct")
	writeFiles(t, dir, "b.DCM", "a.dcm", "notes.txt")

	src, err := OpenSeries(dir, ".dcm")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"a.dcm", "b.DCM"}, src.Files())

	f, err := src.Open("b.DCM")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, "b.DCM", string(body))
}

func TestOpenSeriesZip(t *testing.T) {
	root := t.TempDir()
	zipPath := filepath.Join(root, "cbct.zip")

	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for _, name := range []string{"manifest.csv", "s2.dcm", "s1.dcm"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	src, err := OpenSeries(filepath.Join(root, "cbct"), ".dcm")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, zipPath, src.Location())
	assert.Equal(t, []string{"s1.dcm", "s2.dcm"}, src.Files())

	f, err := src.Open("s2.dcm")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, "s2.dcm", string(body))

	_, err = src.Open("absent.dcm")
	assert.ErrorIs(t, err, cbctmar.ErrNotFound)
}

func TestOpenSeriesMissing(t *testing.T) {
	_, err := OpenSeries(filepath.Join(t.TempDir(), "cbct"), ".dcm")
	assert.ErrorIs(t, err, cbctmar.ErrNotFound)

	empty := filepath.Join(t.TempDir(), "cbct")
	writeFiles(t, empty, "readme.txt")
	_, err = OpenSeries(empty, ".dcm")
	assert.ErrorIs(t, err, cbctmar.ErrNotFound)
}

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "series1"), "1.dcm", "2.dcm")
	writeFiles(t, filepath.Join(root, "series2", "deep"), "3.dcm", "x.json")

	files, err := FindFiles(root, ".dcm")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	all, err := FindFiles(root, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "bad.dcm")

	src, err := OpenSeries(dir, ".dcm")
	require.NoError(t, err)

	_, err = ReadHeaders(src)
	assert.Error(t, err)
}

func TestReadSeriesFromFiles(t *testing.T) {
	dir := t.TempDir()

	// Files are named against the geometric order to make sure z decides.
	zs := map[string]float64{"a.dcm": 0.8, "b.dcm": 0, "c.dcm": 0.4}
	for name, z := range zs {
		require.NoError(t, dicomtest.WriteFile(dir, name, dicomtest.Slice{
			InstanceNumber:   int(z * 10),
			PositionZ:        z,
			HasPositionZ:     true,
			Rows:             2,
			Cols:             3,
			PixelSpacing:     [2]float64{0.25, 0.5},
			SliceThickness:   0.4,
			RescaleSlope:     2,
			RescaleIntercept: -24,
			Signed:           true,
			Pixels:           []int{-488, -1, 0, 1, 12, 2000},
		}))
	}

	src, err := OpenSeries(dir, ".dcm")
	require.NoError(t, err)
	defer src.Close()

	headers, err := ReadHeaders(src)
	require.NoError(t, err)
	require.Len(t, headers, 3)
	assert.Nil(t, headers[0].Pixels)
	assert.Equal(t, 0.8, headers[0].PositionZ)
	assert.Equal(t, [2]float64{0.25, 0.5}, headers[0].PixelSpacing)
	assert.Equal(t, 0.4, headers[0].SliceThickness)
	assert.Equal(t, "CT", headers[0].Attributes["Modality"])

	perm, report := Order(headers)
	assert.Equal(t, []int{1, 2, 0}, perm)
	assert.Equal(t, DirectionIncreasing, report.Direction)
	assert.InDelta(t, 0.4, report.MedianStep, 1e-9)

	rec, err := ReadSliceFrom(src, "b.dcm")
	require.NoError(t, err)
	assert.Equal(t, []int{-488, -1, 0, 1, 12, 2000}, rec.Pixels)

	p, err := rec.Plane()
	require.NoError(t, err)
	assert.Equal(t, 2, p.H)
	assert.Equal(t, 3, p.W)
	assert.Equal(t, []float32{-1000, -26, -24, -22, 0, 3976}, p.Data)
}

func TestReadSlicePixelRepresentation(t *testing.T) {
	cases := []struct {
		Name   string
		Signed bool
		Stored []int
		Want   []int
		HU     []float32
	}{
		{"signed", true, []int{0, 1, -1, 1000}, []int{0, 1, -1, 1000}, []float32{-1024, -1022, -1026, 976}},
		{"unsigned", false, []int{0, 1, 65535, 1000}, []int{0, 1, 65535, 1000}, []float32{-1024, -1022, 130046, 976}},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, dicomtest.WriteFile(dir, "s.dcm", dicomtest.Slice{
				InstanceNumber:   3,
				PositionZ:        12.5,
				HasPositionZ:     c.Signed,
				Rows:             2,
				Cols:             2,
				PixelSpacing:     [2]float64{1, 1},
				RescaleSlope:     2,
				RescaleIntercept: -1024,
				Signed:           c.Signed,
				Pixels:           c.Stored,
			}))

			f, err := os.Open(filepath.Join(dir, "s.dcm"))
			require.NoError(t, err)
			defer f.Close()

			rec, err := ReadSlice(f, "s.dcm")
			require.NoError(t, err)
			assert.Equal(t, 3, rec.InstanceNumber)
			assert.Equal(t, c.Signed, rec.HasPositionZ)
			if c.Signed {
				assert.Equal(t, 12.5, rec.PositionZ)
			}
			assert.Equal(t, c.Want, rec.Pixels)

			p, err := rec.Plane()
			require.NoError(t, err)
			assert.Equal(t, c.HU, p.Data)
		})
	}
}
