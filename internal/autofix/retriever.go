package autofix

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// RetrieveContext extracts the code surrounding a line that a reviewer (or
// a remediation model) needs to understand a finding: all import statements
// plus the outermost function or class containing the line. Returns the
// whole file only as a last resort when the line sits at module level.
func RetrieveContext(ctx context.Context, path string, line int) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var sections []string

	if imports := collectImports(root, source); len(imports) > 0 {
		sections = append(sections, "# Imports\n"+strings.Join(imports, "\n"))
	}

	if enclosing := outermostEnclosing(root, line); enclosing != nil {
		sections = append(sections, "# Context Body\n"+enclosing.Content(source))
	}

	if len(sections) == 0 {
		return string(source), nil
	}
	return strings.Join(sections, "\n\n"), nil
}

func collectImports(root *sitter.Node, source []byte) []string {
	var imports []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement", "import_from_statement":
			imports = append(imports, n.Content(source))
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return imports
}

// outermostEnclosing returns the shallowest function or class definition
// whose span covers the given one based line.
func outermostEnclosing(root *sitter.Node, line int) *sitter.Node {
	row := uint32(line - 1)

	var find func(n *sitter.Node) *sitter.Node
	find = func(n *sitter.Node) *sitter.Node {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.StartPoint().Row > row || child.EndPoint().Row < row {
				continue
			}
			switch child.Type() {
			case "function_definition", "class_definition", "decorated_definition":
				return child
			}
			if found := find(child); found != nil {
				return found
			}
		}
		return nil
	}
	return find(root)
}
