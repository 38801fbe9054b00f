package render

import (
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/StockHamster/market-calendar/internal/flow"
)

// Fonts parses a regular and a bold font once and caches faces per size.
// Faces are not safe for concurrent use, so callers hold the lock while
// drawing or measuring.
type Fonts struct {
	mu      sync.Mutex
	regular *truetype.Font
	bold    *truetype.Font
	faces   map[faceKey]font.Face
}

type faceKey struct {
	size float64
	bold bool
}

// LoadFonts loads the TTF at path for both weights, or the bundled Go fonts
// when path is empty. The Go fonts have no hangul glyphs, so deployments
// set a Korean font path.
func LoadFonts(path string) (*Fonts, error) {
	regularTTF, boldTTF := goregular.TTF, gobold.TTF
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", path, err)
		}
		regularTTF, boldTTF = data, data
	}

	regular, err := truetype.Parse(regularTTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	bold, err := truetype.Parse(boldTTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}

	return &Fonts{
		regular: regular,
		bold:    bold,
		faces:   make(map[faceKey]font.Face),
	}, nil
}

// face must be called with mu held
func (f *Fonts) face(size float64, bold bool) font.Face {
	key := faceKey{size: size, bold: bold}
	if face, ok := f.faces[key]; ok {
		return face
	}
	ttf := f.regular
	if bold {
		ttf = f.bold
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: size, Hinting: font.HintingNone})
	f.faces[key] = face
	return face
}

// missingGlyph sizes runes the loaded font cannot draw
var missingGlyph = flow.EstimateMeasurer{}

// MeasureString implements flow.TextMeasurer with the regular weight
func (f *Fonts) MeasureString(text string, fontSize float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.measure(text, fontSize, false)
}

// MeasureBold implements flow.BoldMeasurer
func (f *Fonts) MeasureBold(text string, fontSize float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.measure(text, fontSize, true)
}

// measure must be called with mu held. Runs of runes the font covers are
// measured with the face; uncovered runes get estimated widths.
func (f *Fonts) measure(text string, size float64, bold bool) float64 {
	face := f.face(size, bold)
	ttf := f.regular
	if bold {
		ttf = f.bold
	}

	var w float64
	start := 0
	for i := 0; i < len(text); {
		r, n := utf8.DecodeRuneInString(text[i:])
		if ttf.Index(r) == 0 {
			w += float64(font.MeasureString(face, text[start:i])) / 64
			w += missingGlyph.MeasureString(text[i:i+n], size)
			start = i + n
		}
		i += n
	}
	w += float64(font.MeasureString(face, text[start:])) / 64
	return w
}
