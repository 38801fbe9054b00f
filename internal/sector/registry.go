// Package sector holds the sector style registry (emoji + color per sector)
// and the text-color pickers used when a sector color is a background.
package sector

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Placeholder sector names that appear in the published data
const (
	None        = "없음" // mover without a sector
	HeaderPlace = "섹터" // header row leaking into some exports
)

// Style is the emoji and hex color for a sector
type Style struct {
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

// Fallback is returned for unknown sectors
var Fallback = Style{Emoji: "❓", Color: "#cccccc"}

var builtin = map[string]Style{
	"섹터":      {"　", "#ffffff"},
	"2차전지":    {"🔋", "#71e046"},
	"5G":      {"📶", "#258441"},
	"AI":      {"🤖", "#85b3d0"},
	"CBDC":    {"💱", "#3480ff"},
	"LNG":     {"⛽", "#37a1ff"},
	"STO":     {"📈", "#ff5283"},
	"가상화폐":    {"🪙", "#FFD700"},
	"가스":      {"🛢️", "#868686"},
	"건설":      {"🏗️", "#8f3a26"},
	"게임":      {"🎮", "#ef2f61"},
	"관세수혜":    {"📦", "#7869ff"},
	"남북경협":    {"🕊️", "#ee6565"},
	"냉각":      {"❄️", "#88e8f0"},
	"드론":      {"🛸", "#6a7181"},
	"로봇":      {"🦾", "#818fc9"},
	"리튬":      {"🔋", "#646458"},
	"물류":      {"📦", "#c3965d"},
	"바이오":     {"🧬", "#28daff"},
	"반도체":     {"💾", "#ff9435"},
	"방산":      {"💣", "#ff2020"},
	"보안":      {"🔐", "#f26c97"},
	"보험":      {"🛡️", "#003366"},
	"비만치료제":   {"⚕️", "#50b9f6"},
	"비철금속":    {"🔩", "#808080"},
	"상법개정":    {"⚖️", "#0d03cc"},
	"석유화학":    {"🏭", "#736464"},
	"수소차":     {"💧", "#00B0F0"},
	"스테이블 코인": {"🤑", "#d9b359"},
	"신규주":     {"🆕", "#caff63"},
	"양자":      {"🔬", "#3cff00"},
	"에너지":     {"⚡", "#ffba76"},
	"엔터":      {"🎤", "#3dff8b"},
	"여행":      {"🗺️", "#50bcdf"},
	"영상·컨텐츠":  {"🎬", "#7E57C2"},
	"오염수":     {"🌊", "#488bae"},
	"우주항공":    {"🚀", "#9d8ff1"},
	"유가":      {"🛢️", "#7c4f55"},
	"유리기판":    {"🧊", "#7affde"},
	"원전":      {"☢️", "#69ff20"},
	"웹툰":      {"📖", "#668af2"},
	"음식료":     {"🍽️", "#ffd220"},
	"의료AI":    {"🩺", "#88accc"},
	"의류":      {"👕", "#d949bc"},
	"이재명":     {"🧓", "#0D33B3"},
	"자동차":     {"🚗", "#4f66ca"},
	"자율주행":    {"🚘", "#49caca"},
	"재건":      {"🧱", "#ff5614"},
	"저출생":     {"👶", "#ff75d0"},
	"전기전력":    {"🔌", "#fcff00"},
	"정책":      {"📜", "#2faaaf"},
	"제약":      {"💊", "#21ff21"},
	"조선":      {"⛴️", "#6b79ff"},
	"증권":      {"📈", "#1832f8"},
	"지역화폐":    {"🏙️", "#6b917a"},
	"지주사":     {"📊", "#4a7a8d"},
	"창투사":     {"🏢", "#00509f"},
	"철강":      {"🏗️", "#00509f"},
	"철도":      {"🚆", "#686c74"},
	"초전도체":    {"🧲", "#c6ccc9"},
	"코로나":     {"🦠", "#ad2e2e"},
	"탄소포집":    {"🌫️", "#87cde4"},
	"탈플라스틱":   {"🌿", "#39e75e"},
	"태양광":     {"🌞", "#ffb644"},
	"토스":      {"💸", "#1956f0"},
	"폭염":      {"🥵", "#EE0000"},
	"풍력":      {"🌬️", "#55b1e1"},
	"항공":      {"✈️", "#003366"},
	"해운":      {"🚢", "#ff8092"},
	"휴대폰부품":   {"📱", "#455A64"},
	"희토류":     {"🔋", "#8e8181"},
	"화장품":     {"💄", "#ff8092"},
	"없음":      {"❓", "#cccccc"},
}

// Registry maps sector names to styles. Lookups normalize names to NFC so
// files exported on macOS (NFD hangul) still match.
type Registry struct {
	mu     sync.RWMutex
	styles map[string]Style
}

// NewRegistry returns a registry seeded with the built-in table
func NewRegistry() *Registry {
	r := &Registry{styles: make(map[string]Style, len(builtin))}
	for name, style := range builtin {
		r.styles[Normalize(name)] = style
	}
	return r
}

// Normalize canonicalizes a sector name
func Normalize(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Lookup returns the style for a sector and whether it was found
func (r *Registry) Lookup(name string) (Style, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.styles[Normalize(name)]
	return s, ok
}

// Style returns the sector's style or Fallback
func (r *Registry) Style(name string) Style {
	if s, ok := r.Lookup(name); ok {
		return s
	}
	return Fallback
}

// Label is "emoji sector" as shown on overlay badges and tooltips
func (r *Registry) Label(name string) string {
	return r.Style(name).Emoji + " " + name
}

// Set adds or replaces a style. Colors that are not 6 hex digits are
// replaced by the fallback color so the registry invariant holds.
func (r *Registry) Set(name string, style Style) {
	if _, _, _, ok := ParseHex(style.Color); !ok {
		style.Color = Fallback.Color
	}
	if style.Emoji == "" {
		style.Emoji = Fallback.Emoji
	}
	r.mu.Lock()
	r.styles[Normalize(name)] = style
	r.mu.Unlock()
}

// Entry is a named style, used for listings
type Entry struct {
	Name string `json:"name"`
	Style
	TextColor string `json:"text_color"`
}

// Entries lists all sectors sorted by name
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.styles))
	for name, style := range r.styles {
		out = append(out, Entry{Name: name, Style: style, TextColor: BadgeTextColor(style.Color)})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered sectors
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.styles)
}
