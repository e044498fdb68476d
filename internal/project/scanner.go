// Package project scans directory trees of Python sources, fanning files
// out to concurrent analyzers and folding the per-file results into one
// aggregated report.
package project

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/range0420/PySafeScan/api/schemas"
	"github.com/range0420/PySafeScan/internal/analysis/core"
	"github.com/range0420/PySafeScan/internal/analysis/static/python"
)

// DefaultConcurrency bounds the number of files analyzed in parallel when
// the caller does not choose a limit.
const DefaultConcurrency = 8

// Scanner walks a directory tree and analyzes every Python file in it.
type Scanner struct {
	logger      *zap.Logger
	catalog     *core.Catalog
	concurrency int
}

// NewScanner builds a Scanner. A nil catalog selects the built-in one; a
// non-positive concurrency falls back to DefaultConcurrency.
func NewScanner(logger *zap.Logger, catalog *core.Catalog, concurrency int) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = core.DefaultCatalog()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scanner{
		logger:      logger.Named("scanner"),
		catalog:     catalog,
		concurrency: concurrency,
	}
}

// ScanPath analyzes a single file or a whole directory, depending on what
// the path points at. Single files are reported as a one-entry project.
func (s *Scanner) ScanPath(ctx context.Context, path string) (*schemas.ProjectReport, error) {
	return s.ScanPaths(ctx, []string{path})
}

// ScanPaths analyzes several files or directories as one project, merging
// everything into a single report and summary.
func (s *Scanner) ScanPaths(ctx context.Context, paths []string) (*schemas.ProjectReport, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		sub, err := collectPythonFiles(path)
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
		files = append(files, sub...)
	}
	return s.scanFiles(ctx, files)
}

// ScanDirectory analyzes every *.py file under root. Files that fail to
// read or parse are logged and skipped; they do not abort the scan.
func (s *Scanner) ScanDirectory(ctx context.Context, root string) (*schemas.ProjectReport, error) {
	files, err := collectPythonFiles(root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	s.logger.Info("project scan starting",
		zap.String("root", root),
		zap.Int("files", len(files)),
		zap.Int("concurrency", s.concurrency),
	)
	return s.scanFiles(ctx, files)
}

func (s *Scanner) scanFiles(ctx context.Context, files []string) (*schemas.ProjectReport, error) {
	report := &schemas.ProjectReport{
		PerFile: make(map[string]*schemas.FileReport, len(files)),
	}

	var mu sync.Mutex
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			analyzer := python.NewAnalyzer(s.logger, s.catalog)
			fileReport, err := analyzer.AnalyzeFile(groupCtx, file)
			if err != nil {
				// An unreadable or unparsable file must not sink the
				// whole scan.
				s.logger.Warn("skipping file",
					zap.String("file", file),
					zap.Error(err),
				)
				return nil
			}

			mu.Lock()
			report.PerFile[file] = fileReport
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Summary = summarize(report.PerFile)
	s.logger.Info("project scan complete",
		zap.Int("files", report.Summary.TotalFiles),
		zap.Int("vulnerabilities", report.Summary.TotalVulnerabilities),
	)
	return report, nil
}

// collectPythonFiles gathers every *.py path under root in walk order.
func collectPythonFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".py") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// summarize folds the per-file reports into project totals, bucketing each
// vulnerability path by the class of sink it terminates in.
func summarize(perFile map[string]*schemas.FileReport) schemas.ProjectSummary {
	summary := schemas.ProjectSummary{
		TotalFiles:         len(perFile),
		VulnerabilityTypes: make(map[string]int),
	}

	for _, fileReport := range perFile {
		count := len(fileReport.VulnerabilityPaths)
		if count == 0 {
			continue
		}
		summary.TotalVulnerabilities += count
		summary.FilesWithVulns++

		for _, path := range fileReport.VulnerabilityPaths {
			if len(path) == 0 {
				continue
			}
			summary.VulnerabilityTypes[classifySinkLabel(path[len(path)-1])]++
		}
	}
	return summary
}

// classifySinkLabel buckets a path's terminal sink label by substring,
// covering labels produced by any catalog, not just the built-in one. The
// checks are ordered: "system"/"subprocess" win over everything, and an
// "exec" match (which also covers execute labels) wins over "open".
func classifySinkLabel(label string) string {
	switch {
	case strings.Contains(label, "system") || strings.Contains(label, "subprocess"):
		return "command_injection"
	case strings.Contains(label, "eval") || strings.Contains(label, "exec"):
		return "code_injection"
	case strings.Contains(label, "load"):
		return "deserialization"
	case strings.Contains(label, "open"):
		return "path_traversal"
	default:
		return "other"
	}
}
