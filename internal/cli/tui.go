package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/hwcomposer/pkg/pipeline"
)

var (
	tabActiveStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Underline(true)
	tabInactiveStyle = lipgloss.NewStyle().Foreground(colorDim)
	helpStyle        = lipgloss.NewStyle().Foreground(colorDim)
)

// frameView selects what the inspector shows for the current frame.
type frameView int

const (
	viewLayers frameView = iota
	viewDump
	viewCommit
)

var viewNames = []string{"layers", "dump", "commit"}

// =============================================================================
// ReportModel - Interactive frame browser
// =============================================================================

// ReportModel is the bubbletea model of `hwcomposer inspect`.
type ReportModel struct {
	Report *pipeline.Report
	Frame  int
	View   frameView

	// Offset scrolls long dumps.
	Offset int
	Height int
}

// NewReportModel creates a browser positioned on the first frame.
func NewReportModel(rep *pipeline.Report) ReportModel {
	return ReportModel{Report: rep, Height: 30}
}

func (m ReportModel) Init() tea.Cmd {
	return nil
}

func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", "l", "n":
			if m.Frame < len(m.Report.Frames)-1 {
				m.Frame++
				m.Offset = 0
			}
		case "left", "h", "p":
			if m.Frame > 0 {
				m.Frame--
				m.Offset = 0
			}
		case "home", "g":
			m.Frame, m.Offset = 0, 0
		case "end", "G":
			m.Frame, m.Offset = max(len(m.Report.Frames)-1, 0), 0
		case "tab":
			m.View = (m.View + 1) % frameView(len(viewNames))
			m.Offset = 0
		case "down", "j":
			m.Offset++
		case "up", "k":
			if m.Offset > 0 {
				m.Offset--
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m ReportModel) View() string {
	var b strings.Builder
	rep := m.Report

	b.WriteString(StyleTitle.Render(rep.Name))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s · %s · %s", rep.Display, rep.Strategy, rep.Topology)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("←/→ frame  tab view  ↑/↓ scroll  q quit"))
	b.WriteString("\n\n")

	if len(rep.Frames) == 0 {
		b.WriteString(StyleDim.Render("no frames"))
		return b.String()
	}
	fr := &rep.Frames[m.Frame]

	title := fmt.Sprintf("frame %d/%d", fr.Index, len(rep.Frames)-1)
	if fr.Name != "" {
		title += "  " + fr.Name
	}
	b.WriteString(StyleValue.Render(title))
	b.WriteString("   ")
	for i, name := range viewNames {
		if frameView(i) == m.View {
			b.WriteString(tabActiveStyle.Render(name))
		} else {
			b.WriteString(tabInactiveStyle.Render(name))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n\n")

	var body string
	switch m.View {
	case viewLayers:
		body = layerTable(fr)
		if fr.Plan != nil && fr.Plan.Job != nil {
			body += "\n" + StyleDim.Render(fmt.Sprintf("composer %s: inputs %v band %s",
				fr.Plan.Job.Composer, fr.Plan.Job.Inputs, fr.Plan.Band))
		}
	case viewDump:
		body = fr.Dump
	case viewCommit:
		body = commitText(fr)
	}
	b.WriteString(scroll(body, m.Offset, m.Height))

	if fr.Violation != "" {
		b.WriteString("\n")
		b.WriteString(StyleError.Render(iconError + " " + fr.Violation))
	}
	return b.String()
}

func commitText(fr *pipeline.FrameReport) string {
	if fr.Commit == nil {
		return StyleDim.Render("not committed (dry run)")
	}
	var b strings.Builder
	for _, bd := range fr.Commit.Bound {
		src := fmt.Sprintf("layer %d", bd.Layer)
		switch {
		case bd.Composed:
			src = "composer output"
		case len(bd.Group) > 1:
			src = fmt.Sprintf("layers %v", bd.Group)
		}
		fmt.Fprintf(&b, "plane %d %s %s at zorder %d\n", bd.Plane, iconArrow, src, bd.Zorder)
	}
	for _, id := range fr.Commit.Blanked {
		fmt.Fprintf(&b, "plane %d blank\n", id)
	}
	for _, f := range fr.Commit.Failed {
		b.WriteString(StyleWarning.Render(fmt.Sprintf("plane %d failed %v: %s", f.Plane, f.Layers, f.Reason)))
		b.WriteString("\n")
	}
	if len(fr.Commit.Dropped) > 0 {
		b.WriteString(StyleWarning.Render(fmt.Sprintf("dropped %v", fr.Commit.Dropped)))
		b.WriteString("\n")
	}
	if d := fr.Commit.DisplayFrame; d != nil {
		fmt.Fprintf(&b, "display frame %+v\n", *d)
	}
	return b.String()
}

// scroll returns at most height lines of s starting at offset.
func scroll(s string, offset, height int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if offset > len(lines)-1 {
		offset = max(len(lines)-1, 0)
	}
	end := min(offset+height, len(lines))
	return strings.Join(lines[offset:end], "\n")
}
