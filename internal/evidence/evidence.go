// Package evidence turns uploaded receipt photos into bounded JPEG
// attachments stored inside payment requests.
package evidence

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/store"
)

const (
	DefaultMaxWidth = 800
	DefaultQuality  = 70
	DefaultMaxBytes = 5 * 1024 * 1024
	// DefaultMaxPixels bounds decoded size; 25 MP covers phone cameras.
	DefaultMaxPixels = 25_000_000
)

// Upload is a photo as received from a client.
type Upload struct {
	ContentType string
	Data        []byte
	CapturedAt  time.Time
	Location    *store.Location
}

type Options struct {
	MaxWidth int // downscale wider images to this width
	Quality  int // JPEG quality, 1-100
	MaxBytes  int // reject larger uploads
	MaxPixels int // reject images whose width*height exceeds this
}

type Pipeline struct {
	opts Options
	now  func() time.Time
}

func New(opts Options) *Pipeline {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Pipeline{opts: opts, now: time.Now}
}

// DecodeDataURL parses "data:image/png;base64,...".
func DecodeDataURL(s string) (Upload, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Upload{}, apperr.New(apperr.CodeValidation, "image must be a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Upload{}, apperr.New(apperr.CodeValidation, "malformed data URL")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return Upload{}, apperr.New(apperr.CodeValidation, "data URL must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Upload{}, apperr.Wrap(apperr.CodeValidation, "invalid base64 image data", err)
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}
	return Upload{ContentType: mediaType, Data: data}, nil
}

// Convert validates, decodes, downscales and re-encodes one upload.
func (p *Pipeline) Convert(u Upload) (store.Attachment, error) {
	if !isImageType(u.ContentType) {
		return store.Attachment{}, apperr.New(apperr.CodeUnsupportedMediaType,
			fmt.Sprintf("unsupported content type %q: only images are accepted", u.ContentType))
	}
	if len(u.Data) == 0 {
		return store.Attachment{}, apperr.New(apperr.CodeValidation, "image is empty")
	}
	if len(u.Data) > p.opts.MaxBytes {
		return store.Attachment{}, apperr.New(apperr.CodeValidation,
			fmt.Sprintf("image exceeds %d bytes", p.opts.MaxBytes))
	}
	if sniffed := http.DetectContentType(u.Data); !isImageType(sniffed) {
		return store.Attachment{}, apperr.New(apperr.CodeUnsupportedMediaType,
			fmt.Sprintf("content is %s, not an image", sniffed))
	}

	// Bound the declared size before the bitmap is allocated.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return store.Attachment{}, apperr.Wrap(apperr.CodeUnsupportedMediaType, "cannot decode image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(p.opts.MaxPixels) {
		return store.Attachment{}, apperr.New(apperr.CodeValidation,
			fmt.Sprintf("image is %dx%d, larger than %d pixels", cfg.Width, cfg.Height, p.opts.MaxPixels))
	}

	src, _, err := image.Decode(bytes.NewReader(u.Data))
	if err != nil {
		return store.Attachment{}, apperr.Wrap(apperr.CodeUnsupportedMediaType, "cannot decode image", err)
	}

	dst := p.resize(src)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.opts.Quality}); err != nil {
		return store.Attachment{}, fmt.Errorf("encode jpeg: %w", err)
	}

	captured := u.CapturedAt
	if captured.IsZero() {
		captured = p.now()
	}
	b := dst.Bounds()
	return store.Attachment{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       b.Dx(),
		Height:      b.Dy(),
		CapturedAt:  captured.UTC(),
		Location:    u.Location,
	}, nil
}

// ConvertAll converts every upload or none.
func (p *Pipeline) ConvertAll(uploads []Upload) ([]store.Attachment, error) {
	out := make([]store.Attachment, 0, len(uploads))
	for i, u := range uploads {
		a, err := p.Convert(u)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// resize flattens src onto white and scales it down to MaxWidth.
func (p *Pipeline) resize(src image.Image) *image.RGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	if w > p.opts.MaxWidth {
		h = max(1, h*p.opts.MaxWidth/w)
		w = p.opts.MaxWidth
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
