package dicomseries

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/pfx"
)

// Source enumerates the files of one series and opens them by name.
type Source interface {
	// Location describes where the series lives, for messages.
	Location() string
	Files() []string
	Open(name string) (io.ReadCloser, error)
	Close() error
}

// OpenSeries finds the series in dir: files directly inside it whose
// extension matches ext (case insensitive, all files when ext is empty),
// or, when the directory is absent or holds none, the matching entries of
// dir+".zip".
func OpenSeries(dir, ext string) (Source, error) {
	src, err := openDirSource(dir, ext)
	if err == nil && len(src.Files()) > 0 {
		return src, nil
	}

	zipPath := strings.TrimSuffix(dir, string(filepath.Separator)) + ".zip"
	if _, statErr := os.Stat(zipPath); statErr == nil {
		return openZipSource(zipPath, ext)
	}

	if err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("no %q files in %s: %w", ext, dir, cbctmar.ErrNotFound)
}

func matchesExt(name, ext string) bool {
	if ext == "" {
		return true
	}

	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext))
}

type dirSource struct {
	dir   string
	files []string
}

func openDirSource(dir, ext string) (*dirSource, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", dir, cbctmar.ErrNotFound)
	} else if err != nil {
		return nil, pfx.Err(err)
	}

	src := &dirSource{dir: dir}
	for _, entry := range entries {
		if entry.IsDir() || !matchesExt(entry.Name(), ext) {
			continue
		}
		src.files = append(src.files, entry.Name())
	}
	sort.Strings(src.files)

	return src, nil
}

func (d *dirSource) Location() string { return d.dir }
func (d *dirSource) Files() []string  { return d.files }
func (d *dirSource) Close() error     { return nil }

func (d *dirSource) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		return nil, pfx.Err(err)
	}

	return f, nil
}

// zipSource reads DICOMs from a zip archive, skipping manifests.
type zipSource struct {
	path   string
	rc     *zip.ReadCloser
	byName map[string]*zip.File
	files  []string
}

func openZipSource(zipPath, ext string) (*zipSource, error) {
	rc, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, pfx.Err(err)
	}

	src := &zipSource{path: zipPath, rc: rc, byName: make(map[string]*zip.File)}
	for _, v := range rc.File {
		// Looking only at the dicoms
		if strings.HasPrefix(v.Name, "manifest") || v.FileInfo().IsDir() || !matchesExt(v.Name, ext) {
			continue
		}
		src.byName[v.Name] = v
		src.files = append(src.files, v.Name)
	}
	sort.Strings(src.files)

	if len(src.files) == 0 {
		rc.Close()
		return nil, fmt.Errorf("no %q files in %s: %w", ext, zipPath, cbctmar.ErrNotFound)
	}

	return src, nil
}

func (z *zipSource) Location() string { return z.path }
func (z *zipSource) Files() []string  { return z.files }
func (z *zipSource) Close() error     { return z.rc.Close() }

func (z *zipSource) Open(name string) (io.ReadCloser, error) {
	v, exists := z.byName[name]
	if !exists {
		return nil, fmt.Errorf("Did not find the requested Dicom %s: %w", name, cbctmar.ErrNotFound)
	}

	return v.Open()
}

// FindFiles walks root recursively and returns the sorted paths of regular
// files whose extension matches ext (all files when ext is empty).
func FindFiles(root, ext string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && matchesExt(d.Name(), ext) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, pfx.Err(err)
	}
	sort.Strings(out)

	return out, nil
}

// ReadHeaders parses the header of every file in src, in src order.
func ReadHeaders(src Source) ([]*SliceRecord, error) {
	out := make([]*SliceRecord, 0, len(src.Files()))
	for _, name := range src.Files() {
		rec, err := readFromSource(src, name, ReadHeader)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, nil
}

// ReadSliceFrom parses one file of src including its pixels.
func ReadSliceFrom(src Source, name string) (*SliceRecord, error) {
	return readFromSource(src, name, ReadSlice)
}

func readFromSource(src Source, name string, read func(io.Reader, string) (*SliceRecord, error)) (*SliceRecord, error) {
	f, err := src.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return read(f, name)
}
