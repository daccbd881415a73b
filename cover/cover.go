// Package cover renders the gradient title card used as the article thumbnail.
package cover

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"strings"
	"time"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrAssetMissing means the configured font could not be loaded.
var ErrAssetMissing = errors.New("cover asset missing")

const (
	Width   = 900
	Height  = 383
	Format  = "jpeg"
	quality = 95

	headlineSize = 48
	dateSize     = 24
	headlineY    = 140
	dateY        = 200
	sideMargin   = 40
)

var (
	topColor    = color.RGBA{102, 126, 234, 255}
	bottomColor = color.RGBA{118, 75, 162, 255}
)

// Image is an encoded cover.
type Image struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// Renderer draws covers with one parsed font.
type Renderer struct {
	font *opentype.Font
}

// dateRunes are drawn on every cover, so the font must carry all of them.
const dateRunes = "0123456789年月日"

// NewRenderer loads the font at fontPath. TrueType/OpenType files and font
// collections (.ttc, the first face is used) are accepted. The font must cover
// the CJK date line.
func NewRenderer(fontPath string) (*Renderer, error) {
	if fontPath == "" {
		return nil, fmt.Errorf("%w: no font_path configured", ErrAssetMissing)
	}
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetMissing, err)
	}
	f, err := parseFont(data)
	if err != nil {
		return nil, fmt.Errorf("%w: font %s: %v", ErrAssetMissing, fontPath, err)
	}
	r := &Renderer{font: f}
	face, err := r.newFace(dateSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()
	if missing := missingGlyphs(face, dateRunes); len(missing) > 0 {
		return nil, fmt.Errorf("%w: font %s has no glyphs for %q", ErrAssetMissing, fontPath, string(missing))
	}
	return r, nil
}

func parseFont(data []byte) (*opentype.Font, error) {
	if f, err := opentype.Parse(data); err == nil {
		return f, nil
	}
	coll, err := opentype.ParseCollection(data)
	if err != nil {
		return nil, err
	}
	return coll.Font(0)
}

// Render draws headline and the formatted date over the gradient. Output is
// byte-identical for identical inputs.
func (r *Renderer) Render(date time.Time, headline string) (Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		c := color.RGBA{
			R: lerp(topColor.R, bottomColor.R, y, Height),
			G: lerp(topColor.G, bottomColor.G, y, Height),
			B: lerp(topColor.B, bottomColor.B, y, Height),
			A: 255,
		}
		for x := 0; x < Width; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	if err := r.drawCentered(img, headline, headlineSize, headlineY); err != nil {
		return Image{}, err
	}
	if err := r.drawCentered(img, date.Format("2006年01月02日"), dateSize, dateY); err != nil {
		return Image{}, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Image{}, fmt.Errorf("encoding cover: %w", err)
	}
	return Image{Data: buf.Bytes(), Width: Width, Height: Height, Format: Format}, nil
}

// drawCentered places text with its middle at (Width/2, cy), trimming it with
// an ellipsis when it would overflow the side margins.
func (r *Renderer) drawCentered(dst *image.RGBA, text string, size float64, cy int) error {
	face, err := r.newFace(size)
	if err != nil {
		return err
	}
	defer face.Close()

	d := &font.Drawer{Dst: dst, Src: image.White, Face: face}
	text = fit(d, dropMissing(face, text), fixed.I(Width-2*sideMargin))

	m := face.Metrics()
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: (fixed.I(Width) - width) / 2,
		Y: fixed.I(cy) + (m.Ascent-m.Descent)/2,
	}
	d.DrawString(text)
	return nil
}

func (r *Renderer) newFace(size float64) (font.Face, error) {
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("creating font face: %w", err)
	}
	return face, nil
}

// missingGlyphs lists the distinct runes of text the face cannot draw.
func missingGlyphs(face font.Face, text string) []rune {
	var missing []rune
	seen := make(map[rune]bool)
	for _, c := range text {
		if unicode.IsSpace(c) || seen[c] {
			continue
		}
		seen[c] = true
		if _, ok := face.GlyphAdvance(c); !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// dropMissing removes runes the face would draw as boxes, e.g. emoji in a
// headline.
func dropMissing(face font.Face, text string) string {
	return strings.Map(func(c rune) rune {
		if unicode.IsSpace(c) {
			return c
		}
		if _, ok := face.GlyphAdvance(c); !ok {
			return -1
		}
		return c
	}, text)
}

func fit(d *font.Drawer, text string, limit fixed.Int26_6) string {
	if d.MeasureString(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		s := string(runes) + "…"
		if d.MeasureString(s) <= limit {
			return s
		}
	}
	return ""
}

func lerp(a, b uint8, i, n int) uint8 {
	return uint8(int(a) + (int(b)-int(a))*i/n)
}
