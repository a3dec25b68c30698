package nifti

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/cbctmar"
)

// KeyFromPath strips the directory and the .nii.gz or .nii suffix.
func KeyFromPath(path string) string {
	key := filepath.Base(path)
	key = strings.TrimSuffix(key, ".nii.gz")
	key = strings.TrimSuffix(key, ".nii")

	return key
}

// FindByKey locates the volume for key within root, preferring key.nii.gz,
// then key.nii, then the first (sorted) file matching key*.nii*.
func FindByKey(root, key string) (string, error) {
	for _, suffix := range []string{".nii.gz", ".nii"} {
		candidate := filepath.Join(root, key+suffix)
		if stat, err := os.Stat(candidate); err == nil && !stat.IsDir() {
			return candidate, nil
		}
	}

	matches, err := filepath.Glob(filepath.Join(root, key+"*.nii*"))
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, cbctmar.ErrInvalidArgument)
	}
	sort.Strings(matches)
	if len(matches) > 0 {
		return matches[0], nil
	}

	return "", fmt.Errorf("no volume for key %q in %s: %w", key, root, cbctmar.ErrNotFound)
}

// List returns the sorted .nii and .nii.gz files directly inside root.
func List(root string) ([]string, error) {
	var out []string
	for _, pattern := range []string{"*.nii", "*.nii.gz"} {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	sort.Strings(out)

	return out, nil
}

// Keys maps each key in root to its file, following the FindByKey
// preference when a key appears both compressed and uncompressed.
func Keys(root string) (map[string]string, error) {
	files, err := List(root)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(files))
	for _, file := range files {
		key := KeyFromPath(file)
		if prior, exists := out[key]; exists && strings.HasSuffix(prior, ".nii.gz") {
			continue
		}
		out[key] = file
	}

	return out, nil
}
