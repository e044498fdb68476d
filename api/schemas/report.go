// Package schemas defines the report payload shared between the analysis
// engine and the report renderers. The JSON field names are part of the
// tool's output contract; renderers must not invent their own.
package schemas

import "sort"

// SourceRecord describes one tainted variable discovered during a run.
type SourceRecord struct {
	Name    string   `json:"name"`
	Line    int      `json:"line"`
	Kind    string   `json:"type"`
	Sources []string `json:"sources"`
}

// Finding is one concrete taint flow reaching a sink. It enriches the raw
// vulnerability path with the metadata the SARIF and HTML renderers need.
type Finding struct {
	// Path is the provenance chain, origin first, ending with the sink label.
	Path []string `json:"path"`
	// Sink is the resolved name of the dangerous call (e.g. "os.system").
	Sink string `json:"sink"`
	// ArgIndex is the position of the tainted argument.
	ArgIndex int `json:"arg_index"`
	// Kind is the vulnerability classification (e.g. "command_injection").
	Kind string `json:"kind"`
	Line int    `json:"line"`
	File string `json:"file"`
}

// AnalysisDetails carries the secondary outputs of a run.
type AnalysisDetails struct {
	SourcesFound      []SourceRecord `json:"sources_found"`
	SinksFound        int            `json:"sinks_found"`
	PropagationChains [][]string     `json:"propagation_chains"`
}

// FileReport is the complete result of analyzing one source unit.
type FileReport struct {
	File               string          `json:"file"`
	TaintedVariables   int             `json:"tainted_variables"`
	VulnerabilityPaths [][]string      `json:"vulnerability_paths"`
	GraphEdges         [][]string      `json:"graph_edges"`
	Details            AnalysisDetails `json:"analysis_details"`
	Findings           []Finding       `json:"findings,omitempty"`
}

// ProjectSummary aggregates results across all analyzed files.
type ProjectSummary struct {
	TotalFiles           int            `json:"total_files"`
	TotalVulnerabilities int            `json:"total_vulnerabilities"`
	FilesWithVulns       int            `json:"files_with_vulns"`
	VulnerabilityTypes   map[string]int `json:"vulnerability_types"`
}

// ProjectReport is the top level payload for a directory scan. A single-file
// scan is reported as a project with one entry.
type ProjectReport struct {
	ScanID  string                 `json:"scan_id,omitempty"`
	PerFile map[string]*FileReport `json:"per_file_results"`
	Summary ProjectSummary         `json:"summary"`
}

// Vulnerabilities flattens the findings of every file, ordered by file path
// so renderer output is stable across runs.
func (r *ProjectReport) Vulnerabilities() []Finding {
	paths := make([]string, 0, len(r.PerFile))
	for p := range r.PerFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []Finding
	for _, p := range paths {
		out = append(out, r.PerFile[p].Findings...)
	}
	return out
}
