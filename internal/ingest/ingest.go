// Package ingest reads kiosk photos from the local filesystem and groups them
// into extraction requests.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/imaging"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
)

// MaxFileBytes bounds a single photo read from disk.
const MaxFileBytes = 25 << 20

// Group is the photos of one kiosk session, in file name order.
type Group struct {
	Name   string
	Paths  []string
	Images []imaging.RawImage
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Groups  uint32
	Failed  uint32
}

// FileError is a photo that could not be read.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

// AllowedExt checks if a file extension is a supported photo format.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// ReadImage loads one photo, taking its media type from the extension.
func ReadImage(path string) (imaging.RawImage, error) {
	ext := filepath.Ext(path)
	if !AllowedExt(ext) {
		return imaging.RawImage{}, fmt.Errorf("unsupported extension %q", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return imaging.RawImage{}, err
	}
	if info.Size() > MaxFileBytes {
		return imaging.RawImage{}, fmt.Errorf("file is %d bytes, limit is %d", info.Size(), MaxFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return imaging.RawImage{}, err
	}
	return imaging.RawImage{
		Data:      data,
		MediaType: constants.MediaTypeForExt(ext),
		Filename:  filepath.Base(path),
	}, nil
}

// LoadFiles reads the photos of a single request.
func LoadFiles(paths []string) (Group, error) {
	if len(paths) == 0 {
		return Group{}, fmt.Errorf("no image files given")
	}
	if len(paths) > pipeline.MaxImages {
		return Group{}, fmt.Errorf("%d files given, at most %d per request", len(paths), pipeline.MaxImages)
	}
	g := Group{Name: filepath.Base(paths[0])}
	for _, p := range paths {
		img, err := ReadImage(p)
		if err != nil {
			return Group{}, FileError{Path: p, Err: err}
		}
		g.Paths = append(g.Paths, p)
		g.Images = append(g.Images, img)
	}
	return g, nil
}
