// Package core contains the taint classification model shared by the static
// analyzers: the kinds of taint a value can carry, the vulnerability classes
// a sink can expose, and the Catalog that maps fully qualified Python names
// onto source/sink/propagator roles.
package core

import (
	"sort"
	"strings"
)

// TaintKind tags the origin of a tainted value. It is assigned when a
// variable's record is created and never merged afterwards.
type TaintKind string

const (
	TaintUserInput   TaintKind = "user_input"
	TaintCommandLine TaintKind = "command_line"
	TaintWebInput    TaintKind = "web_input"
	TaintEnvironment TaintKind = "environment"
	TaintFileInput   TaintKind = "file_input"
	TaintNetwork     TaintKind = "network"
	TaintSerialized  TaintKind = "serialized_data"
	TaintPropagated  TaintKind = "propagated"
	TaintParameter   TaintKind = "parameter"
)

// VulnerabilityKind categorizes the impact when tainted data reaches a sink.
type VulnerabilityKind string

const (
	VulnCommandInjection VulnerabilityKind = "command_injection"
	VulnCodeInjection    VulnerabilityKind = "code_injection"
	VulnDeserialization  VulnerabilityKind = "deserialization"
	VulnPathTraversal    VulnerabilityKind = "path_traversal"
	VulnSQLInjection     VulnerabilityKind = "sql_injection"
)

// Catalog holds the classification tables for one analysis configuration.
// It is immutable after construction and safe for concurrent use; all
// ambiguity (base-name collisions across table entries) is resolved once,
// at build time, so classification never depends on map iteration order.
type Catalog struct {
	sources     map[string]TaintKind
	sinks       map[string]VulnerabilityKind
	sinkBases   map[string]VulnerabilityKind
	propagators map[string]struct{}
	attrRoots   map[string]struct{}
	attrFields  map[string]TaintKind
}

// CatalogTables is the raw, declarative form of a Catalog. Callers may build
// a custom catalog (for example in tests) by filling these tables.
type CatalogTables struct {
	// Sources maps a call name to the taint kind it introduces. Entries
	// without a dot match either the full resolved name or its final
	// segment; dotted entries match the full name only.
	Sources map[string]TaintKind
	// Sinks maps a call name to the vulnerability it exposes. Matching is
	// exact first; dotted entries additionally match by final segment,
	// bare entries never do.
	Sinks map[string]VulnerabilityKind
	// Propagators lists method names that carry taint from receiver and
	// first argument to their result.
	Propagators []string
	// AttrRoots and AttrFields describe attribute accesses that are
	// sources without being called, e.g. request.data.
	AttrRoots  []string
	AttrFields map[string]TaintKind
}

// NewCatalog compiles the tables into an immutable Catalog.
func NewCatalog(t CatalogTables) *Catalog {
	c := &Catalog{
		sources:     make(map[string]TaintKind, len(t.Sources)),
		sinks:       make(map[string]VulnerabilityKind, len(t.Sinks)),
		sinkBases:   make(map[string]VulnerabilityKind),
		propagators: make(map[string]struct{}, len(t.Propagators)),
		attrRoots:   make(map[string]struct{}, len(t.AttrRoots)),
		attrFields:  make(map[string]TaintKind, len(t.AttrFields)),
	}
	for name, kind := range t.Sources {
		c.sources[name] = kind
	}
	for name, kind := range t.Sinks {
		c.sinks[name] = kind
	}

	// Precompute the final-segment fallback index. Only dotted entries
	// participate: a bare "open" must not turn every foo.open into a sink.
	// Sorted iteration makes collisions between entries deterministic
	// (first name in lexical order wins).
	names := make([]string, 0, len(t.Sinks))
	for name := range t.Sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !strings.Contains(name, ".") {
			continue
		}
		base := lastSegment(name)
		if _, exists := c.sinkBases[base]; !exists {
			c.sinkBases[base] = t.Sinks[name]
		}
	}

	for _, name := range t.Propagators {
		c.propagators[name] = struct{}{}
	}
	for _, root := range t.AttrRoots {
		c.attrRoots[root] = struct{}{}
	}
	for attr, kind := range t.AttrFields {
		c.attrFields[attr] = kind
	}
	return c
}

// DefaultCatalog returns the catalog compiled from the built-in tables.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultTables())
}

// Merge layers extra entries on top of the tables, overriding on name
// collision. Extras with an unknown kind string are adopted as-is; the
// summary buckets them under "other".
func (t CatalogTables) Merge(sources map[string]TaintKind, sinks map[string]VulnerabilityKind, propagators []string) CatalogTables {
	for name, kind := range sources {
		t.Sources[name] = kind
	}
	for name, kind := range sinks {
		t.Sinks[name] = kind
	}
	t.Propagators = append(t.Propagators, propagators...)
	return t
}

// DefaultTables returns the built-in classification tables for Python.
func DefaultTables() CatalogTables {
	return CatalogTables{
		Sources: map[string]TaintKind{
			"input":      TaintUserInput,
			"raw_input":  TaintUserInput,
			"argv":       TaintCommandLine,
			"sys.argv":   TaintCommandLine,
			"get":        TaintWebInput,
			"post":       TaintWebInput,
			"request":    TaintWebInput,
			"get_data":   TaintSerialized,
			"get_json":   TaintSerialized,
			"data":       TaintSerialized,
			"args":       TaintWebInput,
			"form":       TaintWebInput,
			"environ":    TaintEnvironment,
			"os.environ": TaintEnvironment,
			"getenv":     TaintEnvironment,
			"os.getenv":  TaintEnvironment,
			"read":       TaintFileInput,
			"open":       TaintFileInput,
			"recv":       TaintNetwork,
			"recvfrom":   TaintNetwork,
		},
		Sinks: map[string]VulnerabilityKind{
			"os.system":               VulnCommandInjection,
			"os.popen":                VulnCommandInjection,
			"os.spawn":                VulnCommandInjection,
			"subprocess.call":         VulnCommandInjection,
			"subprocess.Popen":        VulnCommandInjection,
			"subprocess.run":          VulnCommandInjection,
			"subprocess.check_call":   VulnCommandInjection,
			"subprocess.check_output": VulnCommandInjection,
			"eval":                    VulnCodeInjection,
			"exec":                    VulnCodeInjection,
			"compile":                 VulnCodeInjection,
			"__import__":              VulnCodeInjection,
			"execfile":                VulnCodeInjection,
			"pickle.loads":            VulnDeserialization,
			"pickle.load":             VulnDeserialization,
			"yaml.load":               VulnDeserialization,
			"yaml.safe_load":          VulnDeserialization,
			"marshal.loads":           VulnDeserialization,
			"open":                    VulnPathTraversal,
			"execute":                 VulnSQLInjection,
			"cursor.execute":          VulnSQLInjection,
			"sqlite3.connect.execute": VulnSQLInjection,
		},
		Propagators: []string{
			"format", "replace", "strip", "split", "join",
			"upper", "lower", "encode", "decode", "capitalize",
			"title", "swapcase", "lstrip", "rstrip", "zfill",
			"center", "ljust", "rjust", "expandtabs",
			"removeprefix", "removesuffix",
		},
		AttrRoots: []string{"request", "flask", "django"},
		AttrFields: map[string]TaintKind{
			"get_data": TaintSerialized,
			"data":     TaintSerialized,
			"get_json": TaintSerialized,
			"args":     TaintWebInput,
			"form":     TaintWebInput,
		},
	}
}

// SourceKind reports whether a resolved call name introduces taint. A name
// matches on its full form or on its final dotted segment.
func (c *Catalog) SourceKind(name string) (TaintKind, bool) {
	if kind, ok := c.sources[name]; ok {
		return kind, true
	}
	if kind, ok := c.sources[lastSegment(name)]; ok {
		return kind, true
	}
	return "", false
}

// SinkKind reports whether a resolved call name is dangerous. Exact matches
// win; otherwise the final segment is compared against dotted table entries
// only, so module qualified variants (subprocess.Popen vs Popen) still match
// while lookalikes of bare builtins (foo.open) do not.
func (c *Catalog) SinkKind(name string) (VulnerabilityKind, bool) {
	if kind, ok := c.sinks[name]; ok {
		return kind, true
	}
	if kind, ok := c.sinkBases[lastSegment(name)]; ok {
		return kind, true
	}
	return "", false
}

// IsPropagator reports whether the final segment of a call name is a known
// taint preserving string operation.
func (c *Catalog) IsPropagator(name string) bool {
	_, ok := c.propagators[lastSegment(name)]
	return ok
}

// AttributeSourceKind classifies a bare attribute access chain such as
// sys.argv or request.data that introduces taint without a call.
func (c *Catalog) AttributeSourceKind(path []string) (TaintKind, bool) {
	if len(path) != 2 {
		return "", false
	}
	if path[0] == "sys" && path[1] == "argv" {
		return TaintCommandLine, true
	}
	if _, ok := c.attrRoots[path[0]]; !ok {
		return "", false
	}
	kind, ok := c.attrFields[path[1]]
	return kind, ok
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
