// Package reporting renders scan results into the supported output
// formats. Every renderer implements the same two-call contract: Write the
// report, then Close to flush and release the destination.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/range0420/PySafeScan/api/schemas"
)

// Reporter writes a scan report to some destination.
type Reporter interface {
	// Write renders the given project report.
	Write(report *schemas.ProjectReport) error
	// Close flushes buffered output and releases the destination.
	Close() error
}

// nopWriteCloser wraps an io.Writer whose lifetime the reporter does not
// own, such as stdout.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format. An empty or "stdout" output
// path writes to standard output; any other path creates the file.
func New(format, outputPath, toolVersion string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("creating output file %s: %w", outputPath, err)
		}
		writer = f
	}

	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "json", "":
		return NewJSONReporter(writer), nil
	case "sarif":
		return NewSARIFReporter(writer, toolVersion), nil
	case "html":
		return NewHTMLReporter(writer), nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
