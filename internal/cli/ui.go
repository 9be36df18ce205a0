package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/hwcomposer/pkg/hwc"
	"github.com/matzehuels/hwcomposer/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - direct scanout
	colorYellow = lipgloss.Color("220") // Amber - composed, warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors, discards
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	// StyleError for failures.
	StyleError = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleHeader  = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented dim line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Report Output
// =============================================================================

// formatStats renders report statistics on a single line.
func formatStats(s pipeline.Stats, cached bool) string {
	parts := []string{
		fmt.Sprintf("%d frames", s.Frames),
		fmt.Sprintf("%d layers", s.Layers),
		fmt.Sprintf("%d direct", s.Direct),
		fmt.Sprintf("%d composed", s.Composed),
	}
	if s.Discarded > 0 {
		parts = append(parts, fmt.Sprintf("%d discarded", s.Discarded))
	}
	if s.CommitFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d commit failures", s.CommitFailures))
	}

	status, statusStyle := iconFresh, styleComputed
	if cached {
		status, statusStyle = iconCached, styleCached
	}

	line := "  "
	for i, part := range parts {
		if i > 0 {
			line += StyleDim.Render(" · ")
		}
		line += StyleDim.Render(part)
	}
	return line + StyleDim.Render(" · ") + statusStyle.Render(status)
}

// assignmentStyle colours an outcome by where the layer ended up.
func assignmentStyle(a hwc.Assignment) lipgloss.Style {
	switch a.Kind() {
	case hwc.KindPlane:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case hwc.KindComposer:
		return lipgloss.NewStyle().Foreground(colorYellow)
	case hwc.KindDiscarded:
		return lipgloss.NewStyle().Foreground(colorRed)
	}
	return lipgloss.NewStyle().Foreground(colorDim)
}

// layerTable renders the layer outcomes of a frame.
func layerTable(fr *pipeline.FrameReport) string {
	rows := make([][]string, 0, len(fr.Layers))
	for _, l := range fr.Layers {
		flags := ""
		if l.Secure {
			flags += "secure "
		}
		if l.ClearRequested {
			flags += "clear"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.Itoa(l.Z),
			l.Format.String(),
			l.Frame.String(),
			l.Assignment.String(),
			strings.TrimSpace(flags),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Layer", "Z", "Format", "Frame", "Assignment", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 4 && row < len(fr.Layers) {
				return assignmentStyle(fr.Layers[row].Assignment)
			}
			return lipgloss.NewStyle()
		})
	return t.Render()
}

// printReport prints a report the way `simulate` shows it by default.
func printReport(rep *pipeline.Report, cached bool) {
	fmt.Println(StyleTitle.Render(rep.Name) + " " +
		StyleDim.Render(fmt.Sprintf("on %s (%s, %s)", rep.Display, rep.Strategy, rep.Topology)))
	for i := range rep.Frames {
		fr := &rep.Frames[i]
		title := fmt.Sprintf("frame %d", fr.Index)
		if fr.Name != "" {
			title += " " + fr.Name
		}
		fmt.Println()
		fmt.Println(StyleValue.Render(title) + " " + StyleDim.Render(fr.DecideTime.String()))
		fmt.Println(layerTable(fr))
		if fr.Violation != "" {
			printError("%s", fr.Violation)
		}
		if fr.Commit != nil {
			for _, f := range fr.Commit.Failed {
				printWarning("plane %d dropped layers %v: %s", f.Plane, f.Layers, f.Reason)
			}
		}
		for _, ch := range fr.Changes {
			printDetail("layer %d: %s %s %s", ch.Layer, ch.Requested, iconArrow, ch.Final)
		}
	}
	fmt.Println()
	fmt.Println(formatStats(rep.Stats, cached))
}
