// Core traversal logic: a single pre-order walk over the tree-sitter tree
// that classifies every call and attribute access, mutates the taint state,
// and traces a vulnerability path whenever tainted data reaches a sink.
package python

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/range0420/PySafeScan/api/schemas"
	"github.com/range0420/PySafeScan/internal/analysis/core"
)

// inlineSource remembers a source call that was consumed without an
// assignment, e.g. eval(input()). Resolution is deferred to a post pass
// because the enclosing call may not have been classified yet.
type inlineSource struct {
	node *sitter.Node
	name string
}

// astWalker carries the per-run traversal state.
type astWalker struct {
	logger   *zap.Logger
	filename string
	source   []byte
	catalog  *core.Catalog

	state *State

	// parents maps a node's arena id to its parent node. Built once per
	// run by an initial traversal; tree nodes themselves stay untouched.
	parents map[uintptr]*sitter.Node

	inline   []inlineSource
	paths    [][]string
	findings []schemas.Finding
}

func newASTWalker(logger *zap.Logger, filename string, source []byte, catalog *core.Catalog) *astWalker {
	return &astWalker{
		logger:   logger.Named("py_walker"),
		filename: filename,
		source:   source,
		catalog:  catalog,
		state:    NewState(),
		parents:  make(map[uintptr]*sitter.Node),
	}
}

// Run indexes parents, traverses the tree, and resolves deferred inline
// source calls. All results are left on the walker for the assembler.
func (w *astWalker) Run(root *sitter.Node) {
	w.indexParents(root)
	w.walk(root)
	w.resolveInlineSources()
}

// indexParents performs the preliminary traversal that records each node's
// immediate syntactic parent, keyed by the node's arena id.
func (w *astWalker) indexParents(root *sitter.Node) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			w.parents[child.ID()] = node
			stack = append(stack, child)
		}
	}
}

func (w *astWalker) parent(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	return w.parents[node.ID()]
}

func (w *astWalker) walk(node *sitter.Node) {
	if node == nil {
		return
	}
	w.visit(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.walk(node.NamedChild(i))
	}
}

// visit dispatches on node type. A panic while analyzing one node is
// contained here so a malformed construct cannot abort the whole run.
func (w *astWalker) visit(node *sitter.Node) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("node analysis failed, continuing traversal",
				zap.String("file", w.filename),
				zap.String("node_type", node.Type()),
				zap.Int("line", lineOf(node)),
				zap.Any("panic", r),
			)
		}
	}()

	switch node.Type() {
	case "call":
		w.handleCall(node)
	case "assignment", "augmented_assignment":
		w.handleAssignment(node)
	case "attribute":
		w.handleAttribute(node)
	case "function_definition":
		w.handleFunctionDef(node)
	}
}

// -- Call classification --

func (w *astWalker) handleCall(node *sitter.Node) {
	name := resolveCallName(node.ChildByFieldName("function"), w.source)
	if name == "" {
		// Unresolvable callee shape; not an error, just unclassifiable.
		return
	}

	if kind, ok := w.catalog.SourceKind(name); ok {
		w.handleSourceCall(node, name, kind)
	}
	if vuln, ok := w.catalog.SinkKind(name); ok {
		w.handleSinkCall(node, name, vuln)
	}
	if w.catalog.IsPropagator(name) {
		w.handlePropagatorCall(node, name)
	}
}

// handleSourceCall marks the assignment targets of a source call, or binds
// an internal placeholder when the call's value is consumed inline.
func (w *astWalker) handleSourceCall(node *sitter.Node, name string, kind core.TaintKind) {
	targets := w.assignmentTargets(node)
	if len(targets) == 0 {
		placeholder := fmt.Sprintf("%s%d_%d", placeholderPrefix, lineOf(node), len(w.inline))
		w.state.MarkSource(placeholder, lineOf(node), kind)
		w.inline = append(w.inline, inlineSource{node: node, name: placeholder})
		w.logger.Debug("inline taint source recorded",
			zap.String("call", name),
			zap.String("placeholder", placeholder),
			zap.Int("line", lineOf(node)),
		)
		return
	}

	for _, target := range targets {
		w.state.MarkSource(target, lineOf(node), kind)
		w.logger.Debug("taint source recorded",
			zap.String("variable", target),
			zap.String("call", name),
			zap.String("kind", string(kind)),
			zap.Int("line", lineOf(node)),
		)
	}
}

// handleSinkCall extracts every tainted name reachable through each
// argument and traces its provenance back to the origin.
func (w *astWalker) handleSinkCall(node *sitter.Node, name string, vuln core.VulnerabilityKind) {
	args := positionalArgs(node)
	for i, arg := range args {
		for _, tainted := range w.extractTainted(arg) {
			path := w.state.Trace(tainted)
			if len(path) == 0 {
				continue
			}
			path = append(path, fmt.Sprintf("%s(arg%d)", name, i))
			w.recordFinding(path, name, i, vuln, lineOf(node))
		}
	}
}

// handlePropagatorCall carries taint from a propagator's arguments and its
// receiver into the assignment target, if any.
func (w *astWalker) handlePropagatorCall(node *sitter.Node, name string) {
	var tainted []string
	for _, arg := range positionalArgs(node) {
		tainted = appendUnique(tainted, w.extractTainted(arg)...)
	}

	// Method style: the receiver of cmd.strip() carries the taint.
	if callee := node.ChildByFieldName("function"); callee != nil && callee.Type() == "attribute" {
		tainted = appendUnique(tainted, w.extractTainted(callee.ChildByFieldName("object"))...)
	}

	if len(tainted) == 0 {
		return
	}
	for _, target := range w.assignmentTargets(node) {
		w.state.MarkDerived(target, lineOf(node), core.TaintPropagated, tainted)
		w.logger.Debug("taint propagated",
			zap.String("variable", target),
			zap.String("call", name),
			zap.Strings("from", tainted),
			zap.Int("line", lineOf(node)),
		)
	}
}

// -- Assignments --

// handleAssignment fires for plain and augmented assignments, catching
// compound right-hand sides such as a = b + c where b or c is tainted.
// Assignments whose right-hand side is a classified source or propagator
// call are already handled at the call node; both rules marking the same
// target is harmless because taint only accumulates.
func (w *astWalker) handleAssignment(node *sitter.Node) {
	rhs := node.ChildByFieldName("right")
	if rhs == nil {
		return
	}
	tainted := w.extractTainted(rhs)
	if len(tainted) == 0 {
		return
	}
	for _, target := range targetNames(node.ChildByFieldName("left"), w.source) {
		w.state.MarkDerived(target, lineOf(node), core.TaintPropagated, tainted)
	}
}

// -- Attribute sources --

// handleAttribute detects attribute accesses that are sources without being
// called: x = sys.argv, arg = sys.argv[1], payload = request.data.
func (w *astWalker) handleAttribute(node *sitter.Node) {
	parent := w.parent(node)
	if parent == nil {
		return
	}
	// Middle of a longer chain, or the callee of a call; both are
	// resolved elsewhere.
	if parent.Type() == "attribute" || parent.Type() == "call" {
		return
	}

	path := flattenDottedName(node, w.source)
	kind, ok := w.catalog.AttributeSourceKind(path)
	if !ok {
		return
	}

	carrier := node
	if parent.Type() == "subscript" {
		// sys.argv[1]: the assignment sits one level further up.
		carrier = parent
		parent = w.parent(parent)
		if parent == nil {
			return
		}
	}

	if parent.Type() != "assignment" {
		return
	}
	rhs := parent.ChildByFieldName("right")
	if rhs == nil || rhs.ID() != carrier.ID() {
		return
	}

	for _, target := range targetNames(parent.ChildByFieldName("left"), w.source) {
		w.state.MarkSource(target, lineOf(node), kind)
		w.logger.Debug("attribute taint source recorded",
			zap.String("variable", target),
			zap.String("attribute", NodeContent(node, w.source)),
			zap.String("kind", string(kind)),
			zap.Int("line", lineOf(node)),
		)
	}
}

// -- Function definitions --

// handleFunctionDef registers every declared parameter as tainted. Without
// caller context this is the conservative worst case.
func (w *astWalker) handleFunctionDef(node *sitter.Node) {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	line := lineOf(node)
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if name := parameterName(params.NamedChild(i), w.source); name != "" {
			w.state.MarkParameter(name, line)
		}
	}
}

// parameterName extracts the bound identifier from one parameter node,
// covering plain, typed, defaulted, and starred forms.
func parameterName(param *sitter.Node, source []byte) string {
	switch param.Type() {
	case "identifier":
		return NodeContent(param, source)
	case "default_parameter", "typed_default_parameter":
		return NodeContent(param.ChildByFieldName("name"), source)
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		for i := 0; i < int(param.NamedChildCount()); i++ {
			child := param.NamedChild(i)
			if child.Type() == "identifier" {
				return NodeContent(child, source)
			}
		}
	}
	return ""
}

// -- Expression extraction --

// extractTainted returns all tainted variable names reachable through an
// expression, deduplicated in first-seen order. It folds through binary
// operators, f-string interpolations, subscripts, unary operators,
// attribute objects, and nested call arguments. Read-only: the state is
// never modified here.
func (w *astWalker) extractTainted(node *sitter.Node) []string {
	var out []string
	seen := map[string]bool{}

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "identifier":
			name := NodeContent(n, w.source)
			if w.state.IsTainted(name) && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}

		case "binary_operator", "boolean_operator", "comparison_operator":
			visit(n.ChildByFieldName("left"))
			visit(n.ChildByFieldName("right"))

		case "call":
			// Arguments only. A method receiver carries taint into an
			// expression solely through an assignment-backed propagator
			// record, never directly from here.
			for _, arg := range positionalArgs(n) {
				visit(arg)
			}

		case "string":
			// f-string fragments live as interpolation children.
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "interpolation" {
					visit(child)
				}
			}

		case "interpolation":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				visit(n.NamedChild(i))
			}

		case "subscript":
			visit(n.ChildByFieldName("value"))

		case "unary_operator", "not_operator":
			visit(n.ChildByFieldName("argument"))

		case "attribute":
			visit(n.ChildByFieldName("object"))

		case "parenthesized_expression":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				visit(n.NamedChild(i))
			}
		}
	}

	visit(node)
	return out
}

// -- Deferred inline source resolution --

// resolveInlineSources runs after traversal: a placeholder whose enclosing
// call is a sink becomes a direct two element vulnerability path. This is
// what catches sink(source()), a shape that never produces an assignment
// backed record.
func (w *astWalker) resolveInlineSources() {
	for _, src := range w.inline {
		enclosing := w.parent(src.node)
		if enclosing != nil && enclosing.Type() == "argument_list" {
			enclosing = w.parent(enclosing)
		}
		if enclosing == nil || enclosing.Type() != "call" {
			continue
		}

		name := resolveCallName(enclosing.ChildByFieldName("function"), w.source)
		if name == "" {
			continue
		}
		vuln, ok := w.catalog.SinkKind(name)
		if !ok {
			continue
		}
		path := []string{src.name, fmt.Sprintf("%s(arg0)", name)}
		w.recordFinding(path, name, 0, vuln, lineOf(src.node))
	}
}

// -- Finding bookkeeping --

func (w *astWalker) recordFinding(path []string, sink string, argIndex int, vuln core.VulnerabilityKind, line int) {
	w.paths = append(w.paths, path)
	w.findings = append(w.findings, schemas.Finding{
		Path:     path,
		Sink:     sink,
		ArgIndex: argIndex,
		Kind:     string(vuln),
		Line:     line,
		File:     w.filename,
	})
	w.logger.Warn("taint flow reaches sink",
		zap.String("sink", sink),
		zap.String("kind", string(vuln)),
		zap.Strings("path", path),
		zap.String("file", w.filename),
		zap.Int("line", line),
	)
}

// -- Structural helpers --

// assignmentTargets returns the simple-name targets when the given
// expression is the right-hand side of a direct assignment, nil otherwise.
func (w *astWalker) assignmentTargets(node *sitter.Node) []string {
	parent := w.parent(node)
	if parent == nil || parent.Type() != "assignment" {
		return nil
	}
	rhs := parent.ChildByFieldName("right")
	if rhs == nil || rhs.ID() != node.ID() {
		return nil
	}
	return targetNames(parent.ChildByFieldName("left"), w.source)
}

// targetNames collects the simple identifiers of an assignment target,
// unpacking tuple targets like a, b = ... Non-name targets (attributes,
// subscripts) are skipped.
func targetNames(left *sitter.Node, source []byte) []string {
	if left == nil {
		return nil
	}
	switch left.Type() {
	case "identifier":
		return []string{NodeContent(left, source)}
	case "pattern_list", "tuple_pattern", "tuple":
		var names []string
		for i := 0; i < int(left.NamedChildCount()); i++ {
			child := left.NamedChild(i)
			if child.Type() == "identifier" {
				names = append(names, NodeContent(child, source))
			}
		}
		return names
	}
	return nil
}

// positionalArgs returns a call's positional argument expressions, skipping
// keyword arguments to mirror argument index semantics.
func positionalArgs(call *sitter.Node) []*sitter.Node {
	argsNode := call.ChildByFieldName("arguments")
	if argsNode == nil {
		return nil
	}
	var args []*sitter.Node
	for i := 0; i < int(argsNode.NamedChildCount()); i++ {
		child := argsNode.NamedChild(i)
		if child.Type() == "keyword_argument" {
			continue
		}
		args = append(args, child)
	}
	return args
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !containsString(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
