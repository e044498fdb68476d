package reporting

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/range0420/PySafeScan/api/schemas"
	"github.com/range0420/PySafeScan/internal/reporting/sarif"
)

// bufferCloser adapts bytes.Buffer to io.WriteCloser and records whether
// Close was called.
type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func sampleReport() *schemas.ProjectReport {
	return &schemas.ProjectReport{
		ScanID: "scan-123",
		PerFile: map[string]*schemas.FileReport{
			"app.py": {
				File:               "app.py",
				TaintedVariables:   1,
				VulnerabilityPaths: [][]string{{"x", "os.system(arg0)"}},
				GraphEdges:         [][]string{},
				Details: schemas.AnalysisDetails{
					SourcesFound: []schemas.SourceRecord{
						{Name: "x", Line: 2, Kind: "user_input", Sources: []string{}},
					},
					SinksFound:        1,
					PropagationChains: [][]string{},
				},
				Findings: []schemas.Finding{
					{
						Path:     []string{"x", "os.system(arg0)"},
						Sink:     "os.system",
						ArgIndex: 0,
						Kind:     "command_injection",
						Line:     3,
						File:     "app.py",
					},
					{
						Path:     []string{"p", "open(arg0)"},
						Sink:     "open",
						ArgIndex: 0,
						Kind:     "path_traversal",
						Line:     9,
						File:     "app.py",
					},
				},
			},
		},
		Summary: schemas.ProjectSummary{
			TotalFiles:           1,
			TotalVulnerabilities: 2,
			FilesWithVulns:       1,
			VulnerabilityTypes:   map[string]int{"command_injection": 1, "path_traversal": 1},
		},
	}
}

// -- JSON --

func TestJSONReporterOutputContract(t *testing.T) {
	buf := &bufferCloser{}
	r := NewJSONReporter(buf)

	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())
	assert.True(t, buf.closed)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "scan-123", decoded["scan_id"])
	assert.Contains(t, decoded, "per_file_results")
	assert.Contains(t, decoded, "summary")

	perFile := decoded["per_file_results"].(map[string]interface{})
	fileReport := perFile["app.py"].(map[string]interface{})
	assert.Contains(t, fileReport, "tainted_variables")
	assert.Contains(t, fileReport, "vulnerability_paths")
	assert.Contains(t, fileReport, "graph_edges")
	assert.Contains(t, fileReport, "analysis_details")

	details := fileReport["analysis_details"].(map[string]interface{})
	assert.Contains(t, details, "sources_found")
	assert.Contains(t, details, "sinks_found")
	assert.Contains(t, details, "propagation_chains")
}

func TestJSONReporterCloseWithoutWrite(t *testing.T) {
	buf := &bufferCloser{}
	require.NoError(t, NewJSONReporter(buf).Close())
	assert.Empty(t, buf.String())
	assert.True(t, buf.closed)
}

// -- SARIF --

func TestSARIFReporter(t *testing.T) {
	buf := &bufferCloser{}
	r := NewSARIFReporter(buf, "1.2.3")

	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	var log sarif.Log
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))

	assert.Equal(t, SARIFVersion, log.Version)
	require.Len(t, log.Runs, 1)

	run := log.Runs[0]
	assert.Equal(t, ToolName, run.Tool.Driver.Name)
	require.NotNil(t, run.Tool.Driver.Version)
	assert.Equal(t, "1.2.3", *run.Tool.Driver.Version)

	require.Len(t, run.Results, 2)
	assert.Equal(t, "PYSAFESCAN-COMMAND-INJECTION", run.Results[0].RuleID)
	assert.Equal(t, sarif.LevelError, run.Results[0].Level)
	assert.Equal(t, "PYSAFESCAN-PATH-TRAVERSAL", run.Results[1].RuleID)
	assert.Equal(t, sarif.LevelWarning, run.Results[1].Level)

	// One rule per vulnerability class, registered on first use.
	require.Len(t, run.Tool.Driver.Rules, 2)

	loc := run.Results[0].Locations[0].PhysicalLocation
	require.NotNil(t, loc.Region)
	assert.Equal(t, 3, loc.Region.StartLine)
	assert.Equal(t, "app.py", *loc.ArtifactLocation.URI)
}

func TestSARIFReporterRuleDeduplication(t *testing.T) {
	buf := &bufferCloser{}
	r := NewSARIFReporter(buf, "dev")

	report := sampleReport()
	require.NoError(t, r.Write(report))
	require.NoError(t, r.Write(report))
	require.NoError(t, r.Close())

	var log sarif.Log
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))

	assert.Len(t, log.Runs[0].Results, 4)
	assert.Len(t, log.Runs[0].Tool.Driver.Rules, 2, "repeated kinds must not duplicate rules")
}

// -- HTML --

func TestHTMLReporter(t *testing.T) {
	buf := &bufferCloser{}
	r := NewHTMLReporter(buf)
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	out := buf.String()
	assert.Contains(t, out, "2026-01-02 03:04:05")
	assert.Contains(t, out, "High risk: 1")
	assert.Contains(t, out, "Medium/low risk: 1")
	assert.Contains(t, out, "[command_injection] at app.py:3")
	assert.Contains(t, out, "x -&gt; os.system(arg0)")
	assert.Contains(t, out, "issue-high")
	assert.Contains(t, out, "issue-low")
}

// -- Factory --

func TestNewReporterFactory(t *testing.T) {
	dir := t.TempDir()

	for _, format := range []string{"json", "sarif", "html"} {
		r, err := New(format, filepath.Join(dir, "out."+format), "dev")
		require.NoError(t, err, format)
		require.NoError(t, r.Close())
	}

	_, err := New("yaml", filepath.Join(dir, "out.yaml"), "dev")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}
