package imaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// heicToPNG transcodes HEIC/HEIF bytes to PNG with the configured converter.
// When cacheDir is set the PNG is kept at {cacheDir}/{hashHex}.png and reused.
func heicToPNG(ctx context.Context, r Runner, logger *slog.Logger, converter string, data []byte, cacheDir, hashHex string) ([]byte, error) {
	var cached string
	if cacheDir != "" && hashHex != "" {
		cached = filepath.Join(cacheDir, hashHex+".png")
		if b, err := os.ReadFile(cached); err == nil {
			logger.Debug("imaging.heic.cache_hit", "cache", cached)
			return b, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "vt-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "in.heic")
	out := filepath.Join(tmpDir, "out.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	switch converter {
	case "heif-convert":
		if _, errb, err := r.Run(ctx, "heif-convert", logger, in, out); err != nil {
			return nil, fmt.Errorf("heif-convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "magick":
		if _, errb, err := r.Run(ctx, "magick", logger, in, out); err != nil {
			return nil, fmt.Errorf("magick convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "sips":
		if _, errb, err := r.Run(ctx, "sips", logger, "-s", "format", "png", in, "--out", out); err != nil {
			return nil, fmt.Errorf("sips convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	default:
		return nil, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}

	if cached != "" {
		// another request may have written it first; either copy is fine
		if err := os.WriteFile(cached, png, 0o644); err != nil {
			logger.Warn("imaging.heic.cache_write_failed", "cache", cached, "error", err)
		}
	}
	return png, nil
}
