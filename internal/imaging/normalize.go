package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/common"
)

const (
	// MaxEdge bounds the long edge of every model-ready image.
	MaxEdge = 1024
	// JPEGQuality is the re-encode quality of model-ready images.
	JPEGQuality = 85
	// MaxPixels bounds the decoded size of any input image.
	MaxPixels = 100_000_000
)

// RawImage is one uploaded photo as received.
type RawImage struct {
	Data      []byte
	MediaType string
	Filename  string
}

// NormalizedImage is the bounded JPEG sent to recognition plus the untouched
// original kept for archiving.
type NormalizedImage struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
	Original  RawImage
	// SHA256 of the original bytes, hex encoded.
	ContentHash string
}

// Config for the normalizer.
type Config struct {
	HeicConverter string // heif-convert | magick | sips
	CacheDir      string // optional HEIC->PNG cache
}

type Normalizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewNormalizer(cfg Config, runner Runner, logger *slog.Logger) *Normalizer {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Normalizer{cfg: cfg, runner: runner, logger: logger}
}

// Normalize converts every image or none: the first undecodable image fails
// the whole batch with an ImageDecodeError.
func (n *Normalizer) Normalize(ctx context.Context, imgs []RawImage) ([]NormalizedImage, error) {
	out := make([]NormalizedImage, 0, len(imgs))
	for i, raw := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ni, err := n.normalizeOne(ctx, raw)
		if err != nil {
			n.logger.Warn("imaging.normalize.failed", "index", i, "filename", raw.Filename, "error", err)
			return nil, err
		}
		n.logger.Debug("imaging.normalize.ok",
			"index", i,
			"filename", raw.Filename,
			"media_type", ni.Original.MediaType,
			"width", ni.Width,
			"height", ni.Height,
			"bytes_in", len(raw.Data),
			"bytes_out", len(ni.Data),
		)
		out = append(out, ni)
	}
	return out, nil
}

func (n *Normalizer) normalizeOne(ctx context.Context, raw RawImage) (NormalizedImage, error) {
	if len(raw.Data) == 0 {
		return NormalizedImage{}, &common.ImageDecodeError{Filename: raw.Filename, Cause: fmt.Errorf("empty image")}
	}
	sum := sha256.Sum256(raw.Data)
	hashHex := hex.EncodeToString(sum[:])

	mediaType := DetectMediaType(raw)
	original := raw
	original.MediaType = mediaType

	data := raw.Data
	if constants.IsHEIF(mediaType) {
		png, err := heicToPNG(ctx, n.runner, n.logger, n.cfg.HeicConverter, raw.Data, n.cfg.CacheDir, hashHex)
		if err != nil {
			return NormalizedImage{}, &common.ImageDecodeError{Filename: raw.Filename, Cause: err}
		}
		data = png
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return NormalizedImage{}, &common.ImageDecodeError{Filename: raw.Filename, Cause: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return NormalizedImage{}, &common.ImageDecodeError{
			Filename: raw.Filename,
			Cause:    fmt.Errorf("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, MaxPixels),
		}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return NormalizedImage{}, &common.ImageDecodeError{Filename: raw.Filename, Cause: err}
	}

	dst := Downscale(src, MaxEdge)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return NormalizedImage{}, fmt.Errorf("encode %s: %w", raw.Filename, err)
	}
	b := dst.Bounds()
	return NormalizedImage{
		Data:        buf.Bytes(),
		MediaType:   constants.MediaTypeJPEG,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Original:    original,
		ContentHash: hashHex,
	}, nil
}

// Downscale fits img inside maxEdge x maxEdge keeping its aspect ratio. Images
// already within the bound are returned unchanged.
func Downscale(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}
	var nw, nh int
	if w >= h {
		nw = maxEdge
		nh = max(1, h*maxEdge/w)
	} else {
		nh = maxEdge
		nw = max(1, w*maxEdge/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// DetectMediaType recognises HEIF containers by their bytes whatever the
// declared type, then trusts a specific declared image type, then content
// sniffing, then the file extension.
func DetectMediaType(raw RawImage) string {
	if isHEIFBrand(raw.Data) {
		return constants.MediaTypeHEIC
	}
	declared := strings.ToLower(strings.TrimSpace(raw.MediaType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	if sniffed := http.DetectContentType(raw.Data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if mt := constants.MediaTypeForExt(filepath.Ext(raw.Filename)); mt != "" {
		return mt
	}
	return declared
}

// isHEIFBrand checks the ISO-BMFF ftyp box for a HEIF brand.
func isHEIFBrand(b []byte) bool {
	if len(b) < 12 || string(b[4:8]) != "ftyp" {
		return false
	}
	switch string(b[8:12]) {
	case "heic", "heix", "hevc", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}
