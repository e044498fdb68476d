package reporting

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/range0420/PySafeScan/api/schemas"
)

// JSONReporter writes the report payload as indented JSON, preserving the
// field names of the schemas package verbatim.
type JSONReporter struct {
	writer io.WriteCloser
	report *schemas.ProjectReport
}

// NewJSONReporter creates a reporter that writes the raw report as JSON.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer}
}

// Write stages the report; rendering happens on Close so repeated Write
// calls simply replace the payload.
func (r *JSONReporter) Write(report *schemas.ProjectReport) error {
	r.report = report
	return nil
}

// Close renders the staged report and closes the destination.
func (r *JSONReporter) Close() error {
	var encodeErr error
	if r.report != nil {
		var data []byte
		data, encodeErr = jsoniter.MarshalIndent(r.report, "", "  ")
		if encodeErr == nil {
			_, encodeErr = r.writer.Write(append(data, '\n'))
		}
	}

	closeErr := r.writer.Close()
	if encodeErr != nil {
		return fmt.Errorf("encoding JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing output writer: %w", closeErr)
	}
	return nil
}
