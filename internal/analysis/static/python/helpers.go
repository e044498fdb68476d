package python

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// LocationInfo pins a finding to a file position with the offending line.
type LocationInfo struct {
	File    string
	Line    int
	Column  int
	Snippet string
}

func (l LocationInfo) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// NodeContent extracts the string content of a node from the source bytes.
func NodeContent(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}

// flattenDottedName flattens an identifier or attribute chain into its
// segments: os.path.join -> ["os", "path", "join"]. It returns nil for any
// callee shape that is not a plain dotted chain rooted in a name (a lambda,
// a call result, a subscript); such callees are simply not classified.
func flattenDottedName(node *sitter.Node, source []byte) []string {
	var path []string
	current := node

	for {
		if current == nil {
			return nil
		}

		switch current.Type() {
		case "identifier":
			path = append([]string{NodeContent(current, source)}, path...)
			return path

		case "attribute":
			object := current.ChildByFieldName("object")
			attr := current.ChildByFieldName("attribute")
			if object == nil || attr == nil {
				return nil
			}
			path = append([]string{NodeContent(attr, source)}, path...)
			current = object

		default:
			return nil
		}
	}
}

// resolveCallName returns the dotted name of a call's callee, or "" when the
// callee is unresolvable.
func resolveCallName(callee *sitter.Node, source []byte) string {
	path := flattenDottedName(callee, source)
	if path == nil {
		return ""
	}
	return strings.Join(path, ".")
}

// lineOf converts a node's zero based row to a one based line number.
func lineOf(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// FormatLocation converts a node position into LocationInfo with the
// surrounding source line as snippet.
func FormatLocation(filename string, node *sitter.Node, source []byte) LocationInfo {
	if node == nil {
		return LocationInfo{File: filename}
	}

	start := int(node.StartByte())
	snippet := ""
	if start <= len(source) {
		lineStart := start
		for lineStart > 0 && source[lineStart-1] != '\n' {
			lineStart--
		}
		lineEnd := start
		for lineEnd < len(source) && source[lineEnd] != '\n' {
			lineEnd++
		}
		snippet = strings.TrimSpace(string(source[lineStart:lineEnd]))
	}

	return LocationInfo{
		File:    filename,
		Line:    lineOf(node),
		Column:  int(node.StartPoint().Column),
		Snippet: snippet,
	}
}
