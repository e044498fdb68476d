package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vuln.py", "x = input()\nos.system(x)\n")
	writeFile(t, dir, "clean.py", "print('hello')\n")
	writeFile(t, dir, "nested/also_vuln.py", "eval(input())\n")
	writeFile(t, dir, "notes.txt", "not python")

	s := NewScanner(zaptest.NewLogger(t), nil, 4)
	report, err := s.ScanDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.TotalFiles, "txt files must be ignored")
	assert.Equal(t, 2, report.Summary.TotalVulnerabilities)
	assert.Equal(t, 2, report.Summary.FilesWithVulns)
	assert.Equal(t, 1, report.Summary.VulnerabilityTypes["command_injection"])
	assert.Equal(t, 1, report.Summary.VulnerabilityTypes["code_injection"])
}

func TestScanDirectorySkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.py", "def broken(:\n  pass\n")
	writeFile(t, dir, "ok.py", "x = input()\neval(x)\n")

	s := NewScanner(zaptest.NewLogger(t), nil, 2)
	report, err := s.ScanDirectory(context.Background(), dir)
	require.NoError(t, err, "a broken file must not abort the scan")

	// The broken file is simply absent from the results.
	assert.Len(t, report.PerFile, 1)
	assert.Equal(t, 1, report.Summary.TotalFiles)
	assert.Equal(t, 1, report.Summary.TotalVulnerabilities)
}

func TestScanPathSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "one.py", "target = sys.argv[1]\nos.system(target)\n")

	s := NewScanner(zaptest.NewLogger(t), nil, 0)
	report, err := s.ScanPath(context.Background(), path)
	require.NoError(t, err)

	require.Contains(t, report.PerFile, path)
	assert.Equal(t, 1, report.Summary.TotalFiles)
	assert.Equal(t, 1, report.Summary.TotalVulnerabilities)
	assert.Equal(t, [][]string{{"target", "os.system(arg0)"}}, report.PerFile[path].VulnerabilityPaths)
}

func TestScanPathsMergesTargets(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "standalone.py", "raw = input()\neval(raw)\n")
	sub := filepath.Join(dir, "pkg")
	writeFile(t, sub, "mod.py", "x = input()\nos.system(x)\n")
	writeFile(t, sub, "clean.py", "print('ok')\n")

	s := NewScanner(zaptest.NewLogger(t), nil, 2)
	report, err := s.ScanPaths(context.Background(), []string{file, sub})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.TotalFiles)
	assert.Equal(t, 2, report.Summary.TotalVulnerabilities)
	assert.Equal(t, 1, report.Summary.VulnerabilityTypes["code_injection"])
	assert.Equal(t, 1, report.Summary.VulnerabilityTypes["command_injection"])
}

func TestScanPathMissing(t *testing.T) {
	s := NewScanner(zaptest.NewLogger(t), nil, 1)
	_, err := s.ScanPath(context.Background(), filepath.Join(t.TempDir(), "ghost"))
	require.Error(t, err)
}

func TestClassifySinkLabel(t *testing.T) {
	cases := map[string]string{
		"os.system(arg0)":      "command_injection",
		"subprocess.run(arg0)": "command_injection",
		"eval(arg0)":           "code_injection",
		"exec(arg0)":           "code_injection",
		"cursor.execute(arg0)": "code_injection",
		"pickle.loads(arg0)":   "deserialization",
		"open(arg0)":           "path_traversal",
		"os.popen(arg0)":       "path_traversal",
		"mystery(arg0)":        "other",
	}
	for label, want := range cases {
		assert.Equal(t, want, classifySinkLabel(label), label)
	}
}

func TestScanEmptyDirectory(t *testing.T) {
	s := NewScanner(zaptest.NewLogger(t), nil, 1)
	report, err := s.ScanDirectory(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Summary.TotalFiles)
	assert.Empty(t, report.PerFile)
	assert.NotNil(t, report.Summary.VulnerabilityTypes)
}
