package sector

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseHex parses "#rrggbb" (leading '#' optional, surrounding space ignored)
func ParseHex(hex string) (r, g, b uint8, ok bool) {
	clean := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(clean) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(clean, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}

// RGBA converts a hex color with alpha in [0,1]; malformed input yields the
// neutral gray #cccccc.
func RGBA(hex string, alpha float64) color.NRGBA {
	r, g, b, ok := ParseHex(hex)
	if !ok {
		r, g, b = 204, 204, 204
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return color.NRGBA{R: r, G: g, B: b, A: uint8(alpha*255 + 0.5)}
}

// CSSRGBA is RGBA formatted as a CSS rgba() string
func CSSRGBA(hex string, alpha float64) string {
	r, g, b, ok := ParseHex(hex)
	if !ok {
		r, g, b = 204, 204, 204
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", r, g, b, strconv.FormatFloat(alpha, 'f', -1, 64))
}

func brightness(r, g, b uint8) float64 {
	return (float64(r)*299 + float64(g)*587 + float64(b)*114) / 1000
}

// ChartTextColor picks the label color for chart overlay badges:
// white below brightness 150, black otherwise (and for malformed input).
func ChartTextColor(hex string) string {
	r, g, b, ok := ParseHex(hex)
	if !ok {
		return "#000000"
	}
	if brightness(r, g, b) < 150 {
		return "#ffffff"
	}
	return "#000000"
}

// BadgeTextColor picks the text color for calendar sector badges:
// black above luminance 140, white otherwise. Input must be "#rrggbb".
func BadgeTextColor(hex string) string {
	if !strings.HasPrefix(hex, "#") || len(hex) != 7 {
		return "black"
	}
	r, g, b, ok := ParseHex(hex)
	if !ok {
		return "black"
	}
	if brightness(r, g, b) > 140 {
		return "black"
	}
	return "white"
}

// PaletteTextColor is the picker of the compact sector palette:
// white below luminance 160, black otherwise.
func PaletteTextColor(hex string) string {
	if hex == "" {
		return "#000"
	}
	r, g, b, ok := ParseHex(hex)
	if !ok {
		return "#000"
	}
	if brightness(r, g, b) < 160 {
		return "#fff"
	}
	return "#000"
}

// HighlightBackground is the translucent calendar-cell tint for a sector
// color (hex + 0x4D alpha, about 30%).
func HighlightBackground(hex string) string {
	return hex + "4D"
}
