package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/range0420/PySafeScan/internal/analysis/core"
	"github.com/range0420/PySafeScan/internal/config"
	"github.com/range0420/PySafeScan/internal/observability"
	"github.com/range0420/PySafeScan/internal/project"
	"github.com/range0420/PySafeScan/internal/reporting"
)

// newScanCmd creates the `scan` command: analyze a file or directory and
// write the report in the requested format.
func newScanCmd() *cobra.Command {
	var (
		output      string
		format      string
		concurrency int
	)

	scanCmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "Scan Python files or directories for taint-flow vulnerabilities",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := currentConfig()

			if concurrency <= 0 {
				concurrency = cfg.Analyzer().Concurrency
			}
			cfg.SetScanConfig(config.ScanConfig{
				Targets:      args,
				OutputPath:   output,
				OutputFormat: format,
			})

			scanID := uuid.New().String()
			logger.Info("starting scan",
				zap.String("scan_id", scanID),
				zap.Strings("targets", args),
				zap.String("format", format),
				zap.Int("concurrency", concurrency),
			)

			scanner := project.NewScanner(logger, buildCatalog(cfg.Analyzer()), concurrency)
			report, err := scanner.ScanPaths(ctx, args)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			report.ScanID = scanID

			reporter, err := reporting.New(format, output, Version)
			if err != nil {
				return err
			}
			if err := reporter.Write(report); err != nil {
				reporter.Close()
				return fmt.Errorf("writing report: %w", err)
			}
			if err := reporter.Close(); err != nil {
				return err
			}

			logger.Info("scan finished",
				zap.String("scan_id", scanID),
				zap.Int("files", report.Summary.TotalFiles),
				zap.Int("vulnerabilities", report.Summary.TotalVulnerabilities),
			)
			return nil
		},
	}

	scanCmd.Flags().StringVarP(&output, "output", "o", "", "output path (default stdout)")
	scanCmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, sarif, or html")
	scanCmd.Flags().IntVar(&concurrency, "concurrency", 0, "max files analyzed in parallel (default from config)")
	return scanCmd
}

// buildCatalog layers the configured extra sources, sinks, and propagators
// on top of the built-in tables.
func buildCatalog(ac config.AnalyzerConfig) *core.Catalog {
	if len(ac.ExtraSources) == 0 && len(ac.ExtraSinks) == 0 && len(ac.ExtraPropagators) == 0 {
		return core.DefaultCatalog()
	}

	sources := make(map[string]core.TaintKind, len(ac.ExtraSources))
	for name, kind := range ac.ExtraSources {
		sources[name] = core.TaintKind(kind)
	}
	sinks := make(map[string]core.VulnerabilityKind, len(ac.ExtraSinks))
	for name, kind := range ac.ExtraSinks {
		sinks[name] = core.VulnerabilityKind(kind)
	}
	return core.NewCatalog(core.DefaultTables().Merge(sources, sinks, ac.ExtraPropagators))
}
