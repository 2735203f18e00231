package shared

import (
	"fmt"
	"io"
	"os"
)

const listEntryTemplateConstant = "  - %s\n"

// Reporter emits formatted command output to an underlying sink.
type Reporter interface {
	Printf(format string, args ...any)
	PrintList(heading string, entries []string)
}

type writerReporter struct {
	writer io.Writer
}

// NewWriterReporter constructs a Reporter that writes to the provided io.Writer.
func NewWriterReporter(writer io.Writer) Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return writerReporter{writer: writer}
}

func (reporter writerReporter) Printf(format string, args ...any) {
	fmt.Fprintf(reporter.writer, format, args...)
}

// PrintList writes heading followed by one indented line per entry.
func (reporter writerReporter) PrintList(heading string, entries []string) {
	fmt.Fprintln(reporter.writer, heading)
	for _, entry := range entries {
		fmt.Fprintf(reporter.writer, listEntryTemplateConstant, entry)
	}
}
