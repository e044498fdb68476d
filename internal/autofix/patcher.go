// Package autofix applies suggested remediations to Python sources. Fixes
// are always written to a sibling .fixed file so the original is preserved
// for review, and every patch produces a unified diff preview.
package autofix

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
)

// PatchResult describes one applied fix.
type PatchResult struct {
	// OutputPath is the .fixed sibling file holding the patched source.
	OutputPath string
	// Diff is a human readable preview of the change.
	Diff string
}

// Patcher rewrites single lines or whole blocks in Python files.
type Patcher struct {
	logger *zap.Logger
	differ *diffmatchpatch.DiffMatchPatch
}

func NewPatcher(logger *zap.Logger) *Patcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{
		logger: logger.Named("patcher"),
		differ: diffmatchpatch.New(),
	}
}

// Apply replaces one line of the file with newCode. The existing line must
// match oldCode after whitespace trimming; a mismatch aborts the patch so a
// stale line number can never clobber unrelated code.
func (p *Patcher) Apply(path string, line int, oldCode, newCode string) (*PatchResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	if line < 1 || line > len(lines) {
		return nil, fmt.Errorf("line %d out of range for %s (%d lines)", line, path, len(lines))
	}

	current := lines[line-1]
	if strings.TrimSpace(current) != strings.TrimSpace(oldCode) {
		return nil, fmt.Errorf("line %d of %s does not match the expected code: have %q, want %q",
			line, path, strings.TrimSpace(current), strings.TrimSpace(oldCode))
	}

	// Preserve the original indentation when the replacement is bare.
	indent := current[:len(current)-len(strings.TrimLeft(current, " \t"))]
	replacement := newCode
	if !strings.HasPrefix(replacement, " ") && !strings.HasPrefix(replacement, "\t") {
		replacement = indent + strings.TrimLeft(newCode, " \t")
	}

	patched := make([]string, len(lines))
	copy(patched, lines)
	patched[line-1] = replacement

	return p.write(path, string(content), strings.Join(patched, "\n"))
}

// ApplyBlock replaces the function block containing the given line with
// newBlock. The block spans from the nearest preceding def to the next def
// or the end of the file.
func (p *Patcher) ApplyBlock(path string, line int, newBlock string) (*PatchResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	if line < 1 || line > len(lines) {
		return nil, fmt.Errorf("line %d out of range for %s (%d lines)", line, path, len(lines))
	}

	start := line - 1
	for start > 0 && !strings.HasPrefix(strings.TrimSpace(lines[start]), "def ") {
		start--
	}
	end := line
	for end < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[end]), "def ") {
		end++
	}

	patched := make([]string, 0, len(lines))
	patched = append(patched, lines[:start]...)
	patched = append(patched, strings.Split(strings.TrimRight(newBlock, "\n"), "\n")...)
	patched = append(patched, lines[end:]...)

	return p.write(path, string(content), strings.Join(patched, "\n"))
}

func (p *Patcher) write(path, original, patched string) (*PatchResult, error) {
	outputPath := path + ".fixed"
	if err := os.WriteFile(outputPath, []byte(patched), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", outputPath, err)
	}

	diffs := p.differ.DiffMain(original, patched, false)
	p.differ.DiffCleanupSemantic(diffs)

	p.logger.Info("fix applied",
		zap.String("file", path),
		zap.String("output", outputPath),
	)
	return &PatchResult{
		OutputPath: outputPath,
		Diff:       p.differ.DiffPrettyText(diffs),
	}, nil
}
