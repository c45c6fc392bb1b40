package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
)

// ScanDirectory walks root and groups photos into requests: each photo
// directly under root is its own request, and the photos of each
// subdirectory form one request. Subdirectories holding more than
// pipeline.MaxImages photos are split into consecutive chunks.
// Unreadable files are reported and skipped.
func ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]Group, DirStats, []FileError, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, nil, errors.New("root_path is required")
	}

	var (
		stats   DirStats
		failed  []FileError
		loose   []string
		byDir   = map[string][]string{}
		dirKeys []string
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			failed = append(failed, FileError{Path: path, Err: walkErr})
			stats.Failed++
			return nil // continue walking
		}
		if path != root && skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		dir := filepath.Dir(path)
		if dir == filepath.Clean(root) {
			loose = append(loose, path)
			return nil
		}
		if _, seen := byDir[dir]; !seen {
			dirKeys = append(dirKeys, dir)
		}
		byDir[dir] = append(byDir[dir], path)
		return nil
	})
	if err != nil {
		return nil, stats, failed, fmt.Errorf("walk: %w", err)
	}

	var groups []Group
	add := func(name string, paths []string) {
		g := Group{Name: name}
		for _, p := range paths {
			img, err := ReadImage(p)
			if err != nil {
				failed = append(failed, FileError{Path: p, Err: err})
				stats.Failed++
				continue
			}
			g.Paths = append(g.Paths, p)
			g.Images = append(g.Images, img)
		}
		if len(g.Images) > 0 {
			groups = append(groups, g)
		}
	}

	for _, p := range loose {
		add(relName(root, p), []string{p})
	}
	sort.Strings(dirKeys)
	for _, dir := range dirKeys {
		paths := byDir[dir]
		sort.Strings(paths)
		name := relName(root, dir)
		for i := 0; i < len(paths); i += pipeline.MaxImages {
			end := min(i+pipeline.MaxImages, len(paths))
			chunk := name
			if len(paths) > pipeline.MaxImages {
				chunk = fmt.Sprintf("%s#%d", name, i/pipeline.MaxImages+1)
			}
			add(chunk, paths[i:end])
		}
	}
	stats.Groups = uint32(len(groups))
	return groups, stats, failed, nil
}

func relName(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}
