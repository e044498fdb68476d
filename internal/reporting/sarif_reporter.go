package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/range0420/PySafeScan/api/schemas"
	"github.com/range0420/PySafeScan/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "PySafeScan"
	ToolInfoURI  = "https://github.com/range0420/PySafeScan"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// ruleDefinition carries the static description registered for one
// vulnerability class the first time a finding of that class appears.
type ruleDefinition struct {
	name           string
	description    string
	recommendation string
}

var ruleCatalog = map[string]ruleDefinition{
	"command_injection": {
		name:           "Command Injection",
		description:    "Untrusted input reaches a shell or process execution call.",
		recommendation: "Pass arguments as a list to subprocess with shell=False, or validate against an allow-list.",
	},
	"code_injection": {
		name:           "Code Injection",
		description:    "Untrusted input reaches a dynamic code evaluation call.",
		recommendation: "Avoid eval and exec on external data; use ast.literal_eval or an explicit dispatch table.",
	},
	"deserialization": {
		name:           "Unsafe Deserialization",
		description:    "Untrusted input reaches an unsafe deserialization call.",
		recommendation: "Never unpickle external data; prefer json.loads or yaml.safe_load with a strict schema.",
	},
	"path_traversal": {
		name:           "Path Traversal",
		description:    "Untrusted input is used as a filesystem path.",
		recommendation: "Resolve the path and verify it stays inside the intended base directory before opening.",
	},
	"sql_injection": {
		name:           "SQL Injection",
		description:    "Untrusted input reaches a database query call.",
		recommendation: "Use parameterized queries; never interpolate input into SQL strings.",
	},
}

// SARIFReporter renders a scan report as a SARIF 2.1.0 log. It is safe for
// concurrent Write calls.
type SARIFReporter struct {
	writer io.WriteCloser

	mu  sync.Mutex
	log *sarif.Log
	// registered maps a vulnerability kind to its rule ID once the rule
	// has been added to the driver.
	registered map[string]string
}

// NewSARIFReporter creates a reporter that writes SARIF output. The tool
// version is injected so the package carries no build metadata of its own.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:     writer,
		log:        log,
		registered: make(map[string]string),
	}
}

// Write converts every finding in the report into a SARIF result.
func (r *SARIFReporter) Write(report *schemas.ProjectReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	for _, finding := range report.Vulnerabilities() {
		run.Results = append(run.Results, &sarif.Result{
			RuleID:    r.ensureRule(finding.Kind),
			Message:   &sarif.Message{Text: pString(describeFinding(finding))},
			Level:     levelForKind(finding.Kind),
			Locations: findingLocations(finding),
		})
	}
	return nil
}

// Close finalizes the SARIF log and writes it out.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	closeErr := r.writer.Close()

	if encodeErr != nil {
		return fmt.Errorf("encoding SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing output writer: %w", closeErr)
	}
	return nil
}

// ensureRule registers the rule for a vulnerability kind on first use and
// returns its ID. Must be called with the mutex held.
func (r *SARIFReporter) ensureRule(kind string) string {
	if id, ok := r.registered[kind]; ok {
		return id
	}

	def, known := ruleCatalog[kind]
	if !known {
		def = ruleDefinition{
			name:        kind,
			description: "Untrusted input reaches a dangerous call.",
		}
	}

	id := "PYSAFESCAN-" + strings.ToUpper(strings.ReplaceAll(kind, "_", "-"))
	markdownHelp := fmt.Sprintf("**Vulnerability:** %s\n\n**Description:**\n%s\n\n**Recommendation:**\n%s",
		def.name, def.description, def.recommendation)

	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               id,
		Name:             pString(def.name),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(def.name)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(def.description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(def.recommendation),
			Markdown: pString(markdownHelp),
		},
		Properties: &sarif.PropertyBag{
			"tags":      []string{"security", "taint"},
			"precision": "high",
		},
	})
	r.registered[kind] = id
	return id
}

// describeFinding renders the provenance chain into the result message.
func describeFinding(f schemas.Finding) string {
	return fmt.Sprintf("Tainted data reaches %s (argument %d) via: %s",
		f.Sink, f.ArgIndex, strings.Join(f.Path, " -> "))
}

func findingLocations(f schemas.Finding) []*sarif.Location {
	return []*sarif.Location{
		{
			PhysicalLocation: &sarif.PhysicalLocation{
				ArtifactLocation: &sarif.ArtifactLocation{URI: pString(f.File)},
				Region:           &sarif.Region{StartLine: f.Line},
			},
			Message: &sarif.Message{
				Text: pString(fmt.Sprintf("Sink call %s at %s:%d", f.Sink, f.File, f.Line)),
			},
		},
	}
}

// levelForKind maps a vulnerability class to a SARIF severity level.
func levelForKind(kind string) sarif.Level {
	switch kind {
	case "command_injection", "code_injection", "deserialization", "sql_injection":
		return sarif.LevelError
	case "path_traversal":
		return sarif.LevelWarning
	default:
		return sarif.LevelWarning
	}
}

// pString returns a pointer to the given string. Helper for optional SARIF
// fields.
func pString(s string) *string {
	return &s
}
