// Package theme はscurrysheetsの配色とフォント情報をlipglossのスタイルとして提供する。
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// 基本パレット。
const (
	ColorPrimary    = "#5f00ed"
	ColorBackground = "#121212"
	ColorSurface    = "#191919"
	ColorError      = "#fa5656"
	ColorText       = "#ffffff"
	ColorMuted      = "#7d7d7d"
)

// タグの配色。
var TagColors = map[string]string{
	"blue":   "#4285F4",
	"green":  "#0F9D58",
	"red":    "#DB4437",
	"yellow": "#F4B400",
	"purple": "#AB47BC",
	"teal":   "#009688",
	"orange": "#FF5722",
	"pink":   "#E91E63",
}

// フォントファミリー。端末では使えないが、コールバックページなどの描画で参照する。
const (
	FontHeader = "Coustard, serif"
	FontBody   = "Abel, sans-serif"
)

// Theme は端末UIで使うスタイルの集合。
type Theme struct {
	Header    lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Panel     lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Input     lipgloss.Style

	tag lipgloss.Style
}

// Default は既定のテーマを返す。
func Default() Theme {
	primary := lipgloss.Color(ColorPrimary)
	surface := lipgloss.Color(ColorSurface)
	text := lipgloss.Color(ColorText)
	muted := lipgloss.Color(ColorMuted)

	return Theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary),
		Tab: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 2),
		ActiveTab: lipgloss.NewStyle().
			Bold(true).
			Foreground(text).
			Background(primary).
			Padding(0, 2),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Background(surface).
			Padding(0, 1),
		Muted: lipgloss.NewStyle().
			Foreground(muted),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorError)),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(TagColors["green"])),
		Input: lipgloss.NewStyle().
			Foreground(primary),
		tag: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),
	}
}

// Tag は名前付きタグ色の背景スタイルを返す。未知の名前はprimaryになる。
func (t Theme) Tag(name string) lipgloss.Style {
	return t.tag.Background(lipgloss.Color(TagColor(name)))
}

// TagColor はタグ名に対応する色を返す。大文字小文字は区別しない。
func TagColor(name string) string {
	if c, ok := TagColors[strings.ToLower(name)]; ok {
		return c
	}
	return ColorPrimary
}
