package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/scurrysheets/internal/model"
)

const defaultWidth = 80

// View は現在の状態を描画する。
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.th.Header.Render("scurrysheets"))
	b.WriteString("  ")
	b.WriteString(m.viewAccount())
	b.WriteString("\n\n")
	b.WriteString(m.viewTabs())
	b.WriteString("\n")

	panel := m.th.Panel
	if w := m.effectiveWidth(); w >= 4 {
		panel = panel.Width(w - 2)
	}
	b.WriteString(panel.Render(m.viewPanel()))
	b.WriteString("\n")

	if m.authURL != "" {
		b.WriteString(m.th.Muted.Render("Authorize: "))
		b.WriteString(m.authURL)
		b.WriteString("\n")
	}
	if m.status != "" {
		if m.statusErr {
			b.WriteString(m.th.Error.Render(m.status))
		} else {
			b.WriteString(m.th.Success.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.th.Muted.Render(m.helpLine()))
	return b.String()
}

func (m Model) effectiveWidth() int {
	if m.width > 0 {
		return m.width
	}
	return defaultWidth
}

func (m Model) viewAccount() string {
	if m.session == nil || m.session.User == nil {
		return m.th.Muted.Render("not signed in")
	}
	return m.th.Tag("blue").Render(m.session.User.Email)
}

func (m Model) viewTabs() string {
	tabs := make([]string, 0, len(model.Panels))
	for i, p := range model.Panels {
		label := fmt.Sprintf("%d %s", i+1, p.Title())
		if p == m.panel {
			tabs = append(tabs, m.th.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, m.th.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewPanel() string {
	switch m.panel {
	case model.PanelUpload:
		return m.viewUpload()
	case model.PanelProfile:
		return m.viewProfile()
	default:
		return m.viewDocuments()
	}
}

func (m Model) viewUpload() string {
	if m.session == nil {
		return m.th.Muted.Render("Sign in to upload handwritten sheets.")
	}
	if !m.profile.HasVisionAPIKey() {
		return m.th.Error.Render("Set a Vision API key in the Profile panel before uploading.")
	}
	return "Upload handwritten sheets to convert them into spreadsheets."
}

func (m Model) viewDocuments() string {
	if m.session == nil {
		return m.th.Muted.Render("Sign in to see your documents.")
	}
	return "Your converted documents appear in Google Drive."
}

func (m Model) viewProfile() string {
	if m.session == nil {
		return m.th.Muted.Render("Sign in with Google to manage your profile.")
	}
	p := m.profile
	if p == nil {
		return m.th.Muted.Render("Loading profile...")
	}

	key := m.th.Error.Render("not set")
	if p.HasVisionAPIKey() {
		key = m.th.Tag("green").Render("set")
	}
	lines := []string{
		fmt.Sprintf("Name:   %s", p.FullName),
		fmt.Sprintf("Email:  %s", p.Email),
		fmt.Sprintf("Usage:  %d / %d this month", p.VisionAPIUsage, p.VisionAPILimit),
		fmt.Sprintf("Vision API key: %s", key),
	}
	if m.editing {
		lines = append(lines, "", m.th.Input.Render("> "+mask(m.input)+"_"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) helpLine() string {
	if m.editing {
		return "[Enter] Save    [Esc] Cancel"
	}
	parts := []string{"[1-3/Tab] Panel"}
	if m.session == nil {
		parts = append(parts, "[l] Sign in")
	} else {
		parts = append(parts, "[o] Sign out")
		if m.panel == model.PanelProfile {
			parts = append(parts, "[k] API key")
		}
	}
	parts = append(parts, "[v] Validate", "[q] Quit")
	return strings.Join(parts, "    ")
}

// mask は入力中のキーを末尾4文字以外伏せる。
func mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return s
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
