package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

// Preset is a size and JPEG quality pair.
type Preset struct {
	MaxSide int
	Quality int
}

var presets = map[string]Preset{
	"high":     {MaxSide: 2048, Quality: 95},
	"medium":   {MaxSide: 1024, Quality: 85},
	"low":      {MaxSide: 768, Quality: 75},
	"very_low": {MaxSide: 512, Quality: 70},
}

// DefaultQuality is the preset used when none is configured.
const DefaultQuality = "medium"

// Preprocessor shrinks figures to a preset and re-encodes them as JPEG.
type Preprocessor struct {
	name   string
	preset Preset
}

var _ ports.ImagePreparer = (*Preprocessor)(nil)

// NewPreprocessor resolves quality to a preset.
func NewPreprocessor(quality string) (*Preprocessor, error) {
	name := strings.ToLower(strings.TrimSpace(quality))
	if name == "" {
		name = DefaultQuality
	}
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown image quality %q (want one of %s)", quality, strings.Join(QualityNames(), ", "))
	}
	return &Preprocessor{name: name, preset: p}, nil
}

// QualityNames lists the preset names.
func QualityNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Quality is the preset name; it is part of prepared-image cache keys.
func (p *Preprocessor) Quality() string { return p.name }

// Prepare decodes data, shrinks it to fit the preset while keeping the
// aspect ratio, flattens transparency onto white and encodes JPEG.
func (p *Preprocessor) Prepare(data []byte) (domain.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Image{}, fmt.Errorf("decode image: %w", err)
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), p.preset.MaxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.preset.Quality}); err != nil {
		return domain.Image{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return domain.Image{MIME: "image/jpeg", Data: buf.Bytes()}, nil
}

// Combine stacks the caption above or below the figure on a white canvas
// and returns a PNG.
func (p *Preprocessor) Combine(figure, caption []byte, captionAbove bool) ([]byte, error) {
	fig, _, err := image.Decode(bytes.NewReader(figure))
	if err != nil {
		return nil, fmt.Errorf("decode figure: %w", err)
	}
	capImg, _, err := image.Decode(bytes.NewReader(caption))
	if err != nil {
		return nil, fmt.Errorf("decode caption: %w", err)
	}

	fb, cb := fig.Bounds(), capImg.Bounds()
	width := fb.Dx()
	if cb.Dx() > width {
		width = cb.Dx()
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, fb.Dy()+cb.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	top, bottom := fig, capImg
	if captionAbove {
		top, bottom = capImg, fig
	}
	draw.Draw(canvas, image.Rect(0, 0, top.Bounds().Dx(), top.Bounds().Dy()), top, top.Bounds().Min, draw.Over)
	offset := top.Bounds().Dy()
	draw.Draw(canvas, image.Rect(0, offset, bottom.Bounds().Dx(), offset+bottom.Bounds().Dy()), bottom, bottom.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales w x h down so neither side exceeds limit. Images are never enlarged.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, atLeastOne(h * limit / w)
	}
	return atLeastOne(w * limit / h), limit
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
