package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danielpatrickdp/launch-predictor/internal/eval"
	"github.com/danielpatrickdp/launch-predictor/internal/history"
)

// #region styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7")).Bold(true)
	cellStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	hitStyle    = cellStyle.Foreground(lipgloss.Color("#9ece6a"))
	missStyle   = cellStyle.Foreground(lipgloss.Color("#f7768e"))
)

// #endregion styles

// #region history
// renderHistory draws both rings as labelled cells, green for 1 and red for 0.
func renderHistory(s history.Snapshot) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		renderRow("Predicted by Decision Tree", s.Predicted, s.Cursor),
		renderRow("Actual", s.Actual, s.Cursor),
	)
}

func renderRow(title string, slots []history.Outcome, cursor int) string {
	cells := make([]string, 0, len(slots))
	for i, o := range slots {
		label := labelStyle.Render(fmt.Sprintf("a=%d", i))
		if i == cursor {
			label = cursorStyle.Render(fmt.Sprintf("a=%d", i))
		}
		style := missStyle
		if o == history.Hit {
			style = hitStyle
		}
		cells = append(cells, lipgloss.JoinVertical(lipgloss.Center, label, style.Render(strconv.Itoa(int(o)))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

// #endregion history

// #region eval
func renderEval(r eval.EvalResult) string {
	parts := make([]string, 0, len(r.Metrics))
	for _, m := range r.Metrics {
		parts = append(parts, fmt.Sprintf("%s=%.2f", m.Name, m.Value))
	}
	return fmt.Sprintf("%s (%s)", strings.Join(parts, " "), r.Reason)
}

// #endregion eval
