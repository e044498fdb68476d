// Package python implements static taint analysis for Python source files
// on top of the tree-sitter grammar. The analyzer is the entry point; it
// parses a source unit, drives the tree walker, and assembles the report.
package python

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"

	"github.com/range0420/PySafeScan/api/schemas"
	"github.com/range0420/PySafeScan/internal/analysis/core"
)

// ErrSyntax reports that a file could not be parsed into a usable tree.
// Callers scanning whole projects typically log it and move on.
var ErrSyntax = errors.New("python source contains syntax errors")

// Analyzer performs taint analysis on Python sources. It holds no
// per-file state, so a single Analyzer may serve many files; each call
// builds its own walker and taint state.
type Analyzer struct {
	logger  *zap.Logger
	catalog *core.Catalog
}

// NewAnalyzer builds an Analyzer with the given catalog. A nil catalog
// selects the built-in one.
func NewAnalyzer(logger *zap.Logger, catalog *core.Catalog) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = core.DefaultCatalog()
	}
	return &Analyzer{
		logger:  logger.Named("py_analyzer"),
		catalog: catalog,
	}
}

// AnalyzeFile reads and analyzes a single file from disk.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*schemas.FileReport, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.AnalyzeSource(ctx, path, src)
}

// AnalyzeSource parses the given source bytes and runs taint analysis over
// the resulting tree. The filename is used only for report attribution.
func (a *Analyzer) AnalyzeSource(ctx context.Context, filename string, source []byte) (*schemas.FileReport, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, fmt.Errorf("%s: %w", filename, ErrSyntax)
	}

	walker := newASTWalker(a.logger, filename, source, a.catalog)
	walker.Run(root)

	report := assembleReport(filename, walker)
	a.logger.Info("analysis complete",
		zap.String("file", filename),
		zap.Int("tainted_variables", report.TaintedVariables),
		zap.Int("vulnerability_paths", len(report.VulnerabilityPaths)),
	)
	return report, nil
}

// assembleReport converts walker results into the report payload. Internal
// placeholder variables are excluded from the variable count, the sources
// list, and the edge set; they exist only so inline source calls can be
// traced and must never leak into output.
func assembleReport(filename string, w *astWalker) *schemas.FileReport {
	var sources []schemas.SourceRecord
	tainted := 0
	for _, rec := range w.state.Records() {
		if rec.isPlaceholder() {
			continue
		}
		tainted++
		srcs := rec.Sources
		if srcs == nil {
			srcs = []string{}
		}
		sources = append(sources, schemas.SourceRecord{
			Name:    rec.Name,
			Line:    rec.Line,
			Kind:    string(rec.Kind),
			Sources: srcs,
		})
	}

	edges := make([][]string, 0, len(w.state.Edges()))
	for _, e := range w.state.Edges() {
		if strings.HasPrefix(e[0], placeholderPrefix) || strings.HasPrefix(e[1], placeholderPrefix) {
			continue
		}
		edges = append(edges, []string{e[0], e[1]})
	}

	paths := w.paths
	if paths == nil {
		paths = [][]string{}
	}
	if sources == nil {
		sources = []schemas.SourceRecord{}
	}
	chains := w.state.Chains()
	if chains == nil {
		chains = [][]string{}
	}

	return &schemas.FileReport{
		File:               filename,
		TaintedVariables:   tainted,
		VulnerabilityPaths: paths,
		GraphEdges:         edges,
		Details: schemas.AnalysisDetails{
			SourcesFound:      sources,
			SinksFound:        len(paths),
			PropagationChains: chains,
		},
		Findings: w.findings,
	}
}
