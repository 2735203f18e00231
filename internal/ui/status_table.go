package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/temirov/repowatch/internal/pipeline"
)

const (
	// NothingToReportMessage is printed when every repository is filtered out of the table.
	NothingToReportMessage = "Nothing to do here, everything looks perfectly fine."

	pathColumnHeaderConstant     = "Path"
	stateColumnHeaderConstant    = "State"
	stashColumnHeaderConstant    = "Stash size"
	failureStateTemplateConstant = "%s (%s)"
	tableOutputTemplateConstant  = "%s\n"
	stateColumnIndexConstant     = 1
	tableCellPaddingConstant     = 1
	headerColorConstant          = "12"
	attentionColorConstant       = "11"
	successColorConstant         = "10"
	fetchedColorConstant         = "14"
	problemColorConstant         = "9"
	borderColorConstant          = "8"
)

type statePalette map[pipeline.RepositoryState]lipgloss.Style

func newStatePalette() statePalette {
	attention := lipgloss.NewStyle().Foreground(lipgloss.Color(attentionColorConstant))
	problem := lipgloss.NewStyle().Foreground(lipgloss.Color(problemColorConstant))
	return statePalette{
		pipeline.RepositoryStateUpdated:       lipgloss.NewStyle().Foreground(lipgloss.Color(successColorConstant)),
		pipeline.RepositoryStateFetched:       lipgloss.NewStyle().Foreground(lipgloss.Color(fetchedColorConstant)),
		pipeline.RepositoryStateNoFastForward: attention,
		pipeline.RepositoryStateLocalChanges:  attention,
		pipeline.RepositoryStateNotPushed:     attention,
		pipeline.RepositoryStateUnknown:       problem,
		pipeline.RepositoryStateDetached:      problem,
	}
}

func (palette statePalette) style(state pipeline.RepositoryState) lipgloss.Style {
	style, styled := palette[state]
	if !styled {
		return lipgloss.NewStyle()
	}
	return style
}

func (palette statePalette) render(state pipeline.RepositoryState) string {
	return palette.style(state).Render(state.String())
}

// StatusTable renders the final report of a run.
type StatusTable struct {
	showAll bool
	palette statePalette
}

// NewStatusTable constructs a table. Unless showAll is set, repositories that need no attention are omitted.
func NewStatusTable(showAll bool) StatusTable {
	return StatusTable{showAll: showAll, palette: newStatePalette()}
}

// Rows returns the repositories the table lists, in the given order.
func (statusTable StatusTable) Rows(infos []pipeline.RepositoryInfo) []pipeline.RepositoryInfo {
	if statusTable.showAll {
		return infos
	}
	visible := make([]pipeline.RepositoryInfo, 0, len(infos))
	for _, info := range infos {
		if info.NeedsAttention() {
			visible = append(visible, info)
		}
	}
	return visible
}

// Render returns the table text, or NothingToReportMessage when no rows remain.
func (statusTable StatusTable) Render(infos []pipeline.RepositoryInfo) string {
	rows := statusTable.Rows(infos)
	if len(rows) == 0 {
		return NothingToReportMessage
	}

	states := make([]pipeline.RepositoryState, 0, len(rows))
	cells := make([][]string, 0, len(rows))
	for _, info := range rows {
		states = append(states, info.State)
		cells = append(cells, []string{info.Path, describeState(info), strconv.FormatUint(info.StashCount, 10)})
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(headerColorConstant)).Padding(0, tableCellPaddingConstant)
	cellStyle := lipgloss.NewStyle().Padding(0, tableCellPaddingConstant)
	rendered := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorConstant))).
		Headers(pathColumnHeaderConstant, stateColumnHeaderConstant, stashColumnHeaderConstant).
		Rows(cells...).
		StyleFunc(func(row int, column int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if column == stateColumnIndexConstant && row >= 0 && row < len(states) {
				return statusTable.palette.style(states[row]).Padding(0, tableCellPaddingConstant)
			}
			return cellStyle
		})
	return rendered.String()
}

// Write renders infos to writer followed by a newline.
func (statusTable StatusTable) Write(writer io.Writer, infos []pipeline.RepositoryInfo) error {
	_, writeError := fmt.Fprintf(writer, tableOutputTemplateConstant, statusTable.Render(infos))
	return writeError
}

func describeState(info pipeline.RepositoryInfo) string {
	if len(info.Failure) == 0 {
		return info.State.String()
	}
	return fmt.Sprintf(failureStateTemplateConstant, info.State.String(), info.Failure)
}
