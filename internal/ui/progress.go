package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/temirov/repowatch/internal/pipeline"
)

const (
	progressLineTemplateConstant    = "%s %s %s %s\n"
	progressCounterTemplateConstant = "[%d/%d]"
	progressDurationRoundConstant   = 10 * time.Millisecond
	taskStartedMessageConstant      = "processing repository"
	taskSteppedMessageConstant      = "repository step"
	logFieldPathConstant            = "path"
	logFieldStepConstant            = "step"
)

// ProgressReporter prints one line per finished repository and logs lifecycle details at debug level.
// It is safe for concurrent use by the worker pool.
type ProgressReporter struct {
	writer       io.Writer
	logger       *zap.Logger
	mutex        sync.Mutex
	counterStyle lipgloss.Style
	nameStyle    lipgloss.Style
	palette      statePalette
}

// NewProgressReporter constructs a ProgressReporter writing to writer.
func NewProgressReporter(writer io.Writer, logger *zap.Logger) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressReporter{
		writer:       writer,
		logger:       logger,
		counterStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		nameStyle:    lipgloss.NewStyle().Bold(true),
		palette:      newStatePalette(),
	}
}

// TaskStarted logs that a repository entered the pipeline.
func (reporter *ProgressReporter) TaskStarted(info pipeline.RepositoryInfo, total int) {
	reporter.logger.Debug(taskStartedMessageConstant, zap.String(logFieldPathConstant, info.Path))
}

// TaskStepped logs the pipeline step a repository reached.
func (reporter *ProgressReporter) TaskStepped(info pipeline.RepositoryInfo, step pipeline.Step) {
	reporter.logger.Debug(taskSteppedMessageConstant,
		zap.String(logFieldPathConstant, info.Path),
		zap.String(logFieldStepConstant, string(step)))
}

// TaskFinished prints the completion line of a repository.
func (reporter *ProgressReporter) TaskFinished(info pipeline.RepositoryInfo, completed int, total int) {
	counter := reporter.counterStyle.Render(fmt.Sprintf(progressCounterTemplateConstant, completed, total))
	name := reporter.nameStyle.Render(info.Name)
	state := reporter.palette.render(info.State)
	elapsed := reporter.counterStyle.Render(info.Duration.Round(progressDurationRoundConstant).String())

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	fmt.Fprintf(reporter.writer, progressLineTemplateConstant, counter, name, state, elapsed)
}
