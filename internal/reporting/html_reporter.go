package reporting

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/range0420/PySafeScan/api/schemas"
)

// htmlReportTemplate renders the summary cards followed by one issue card
// per finding. Styling stays inline so the file is self-contained.
const htmlReportTemplate = `<!DOCTYPE html>
<html>
<head>
<title>PySafeScan Report</title>
<style>
  body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 40px; background-color: #f4f7f6; }
  .container { background: white; padding: 30px; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
  h1 { color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
  .stat-box { display: flex; gap: 20px; margin-bottom: 30px; }
  .stat-card { padding: 20px; border-radius: 5px; color: white; flex: 1; text-align: center; font-weight: bold; }
  .high { background-color: #e74c3c; }
  .low { background-color: #27ae60; }
  .issue-card { border: 1px solid #ddd; margin-bottom: 20px; padding: 15px; border-radius: 5px; border-left: 8px solid; }
  .issue-high { border-left-color: #e74c3c; }
  .issue-low { border-left-color: #27ae60; }
  .code-block { background: #2d3436; color: #fab1a0; padding: 10px; border-radius: 4px; font-family: 'Courier New', monospace; overflow-x: auto; }
  .suggestion { color: #2980b9; font-style: italic; margin-top: 10px; }
</style>
</head>
<body>
<div class="container">
  <h1>PySafeScan Security Report</h1>
  <p>Generated: {{.Timestamp}}</p>
  <p>Files scanned: {{.TotalFiles}}</p>
  <div class="stat-box">
    <div class="stat-card high">High risk: {{.HighCount}}</div>
    <div class="stat-card low">Medium/low risk: {{.LowCount}}</div>
  </div>
  {{range .Issues}}
  <div class="issue-card issue-{{.RiskClass}}">
    <h3>[{{.Kind}}] at {{.File}}:{{.Line}}</h3>
    <div class="code-block"><code>{{.Chain}}</code></div>
    <p class="suggestion"><strong>Suggestion:</strong> {{.Suggestion}}</p>
  </div>
  {{end}}
</div>
</body>
</html>
`

type htmlIssue struct {
	Kind       string
	File       string
	Line       int
	Chain      string
	RiskClass  string
	Suggestion string
}

type htmlReportData struct {
	Timestamp  string
	TotalFiles int
	HighCount  int
	LowCount   int
	Issues     []htmlIssue
}

// HTMLReporter renders a self-contained HTML report for human review.
type HTMLReporter struct {
	writer io.WriteCloser
	tmpl   *template.Template
	report *schemas.ProjectReport
	// now is swappable so tests get a stable timestamp.
	now func() time.Time
}

// NewHTMLReporter creates a reporter that renders the HTML summary.
func NewHTMLReporter(writer io.WriteCloser) *HTMLReporter {
	return &HTMLReporter{
		writer: writer,
		tmpl:   template.Must(template.New("report").Parse(htmlReportTemplate)),
		now:    time.Now,
	}
}

// Write stages the report for rendering on Close.
func (r *HTMLReporter) Write(report *schemas.ProjectReport) error {
	r.report = report
	return nil
}

// Close renders the staged report and closes the destination.
func (r *HTMLReporter) Close() error {
	var renderErr error
	if r.report != nil {
		renderErr = r.tmpl.Execute(r.writer, r.buildData())
	}

	closeErr := r.writer.Close()
	if renderErr != nil {
		return fmt.Errorf("rendering HTML report: %w", renderErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing output writer: %w", closeErr)
	}
	return nil
}

func (r *HTMLReporter) buildData() htmlReportData {
	data := htmlReportData{
		Timestamp:  r.now().Format("2006-01-02 15:04:05"),
		TotalFiles: r.report.Summary.TotalFiles,
	}

	for _, f := range r.report.Vulnerabilities() {
		risk := "low"
		if isHighRisk(f.Kind) {
			risk = "high"
			data.HighCount++
		} else {
			data.LowCount++
		}
		data.Issues = append(data.Issues, htmlIssue{
			Kind:       f.Kind,
			File:       f.File,
			Line:       f.Line,
			Chain:      strings.Join(f.Path, " -> "),
			RiskClass:  risk,
			Suggestion: suggestionForKind(f.Kind),
		})
	}
	return data
}

func isHighRisk(kind string) bool {
	switch kind {
	case "command_injection", "code_injection", "deserialization", "sql_injection":
		return true
	}
	return false
}

func suggestionForKind(kind string) string {
	if def, ok := ruleCatalog[kind]; ok {
		return def.recommendation
	}
	return "Validate or sanitize external input before passing it to dangerous calls."
}
