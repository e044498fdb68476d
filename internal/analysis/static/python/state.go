// Taint working memory for a single analysis run: the per-variable records,
// the forward propagation graph, the backward path tracer, and the forward
// chain extraction used by the report.
package python

import (
	"strings"

	"github.com/range0420/PySafeScan/internal/analysis/core"
)

// placeholderPrefix names the synthetic variables bound to source calls that
// are consumed inline instead of being assigned. They participate in the
// state like any variable but are stripped from report payloads.
const placeholderPrefix = "__direct_source_"

// Record is the taint entry for one variable. The kind is fixed at creation;
// only the upstream sources list grows afterwards.
type Record struct {
	Name    string
	Line    int
	Kind    core.TaintKind
	Sources []string
}

func (r *Record) isPlaceholder() bool {
	return strings.HasPrefix(r.Name, placeholderPrefix)
}

// State owns the taint records and the propagation graph for one run. It is
// never shared across runs: the analyzer builds a fresh State per source
// unit, which is what makes whole-project analysis embarrassingly parallel.
type State struct {
	records map[string]*Record
	// order keeps the first-seen order of variable names so every report
	// derived from the state is deterministic.
	order []string

	// adj is the forward adjacency (origin -> derived), edges the
	// insertion-ordered edge list. Both exclude duplicates.
	adj   map[string][]string
	edges [][2]string
}

// NewState returns an empty working memory.
func NewState() *State {
	return &State{
		records: make(map[string]*Record),
		adj:     make(map[string][]string),
	}
}

// Lookup returns the record for a variable name, if any.
func (s *State) Lookup(name string) (*Record, bool) {
	r, ok := s.records[name]
	return r, ok
}

// IsTainted reports whether a variable has a taint record.
func (s *State) IsTainted(name string) bool {
	_, ok := s.records[name]
	return ok
}

// Records returns all records in first-seen order.
func (s *State) Records() []*Record {
	out := make([]*Record, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.records[name])
	}
	return out
}

// Edges returns the propagation edges in insertion order.
func (s *State) Edges() [][2]string {
	return s.edges
}

// MarkSource creates or overwrites the record for a variable assigned
// directly from a taint source. A reassignment deliberately resets the
// sources list: the variable now holds fresh external data, not a value
// derived from its previous contents.
func (s *State) MarkSource(name string, line int, kind core.TaintKind) *Record {
	if _, seen := s.records[name]; !seen {
		s.order = append(s.order, name)
	}
	rec := &Record{Name: name, Line: line, Kind: kind}
	s.records[name] = rec
	return rec
}

// MarkParameter records a function parameter as conservatively tainted,
// unless the name already carries a record.
func (s *State) MarkParameter(name string, line int) {
	if _, seen := s.records[name]; seen {
		return
	}
	s.MarkSource(name, line, core.TaintParameter)
}

// MarkDerived records that a variable's value is derived from the given
// upstream names. The record is created if absent; existing kind and
// sources are never downgraded or removed; taint only accumulates. Each
// upstream that itself has a record (and is not the variable's own name)
// is appended to the sources list and mirrored as a propagation edge.
func (s *State) MarkDerived(name string, line int, kind core.TaintKind, upstream []string) {
	rec, ok := s.records[name]
	if !ok {
		rec = &Record{Name: name, Line: line, Kind: kind}
		s.records[name] = rec
		s.order = append(s.order, name)
	}

	for _, up := range upstream {
		if up == name {
			continue
		}
		if _, known := s.records[up]; !known {
			continue
		}
		if containsString(rec.Sources, up) {
			continue
		}
		rec.Sources = append(rec.Sources, up)
		s.addEdge(up, name)
	}
}

func (s *State) addEdge(from, to string) {
	for _, existing := range s.adj[from] {
		if existing == to {
			return
		}
	}
	s.adj[from] = append(s.adj[from], to)
	s.edges = append(s.edges, [2]string{from, to})
}

// Trace walks backward from a tainted variable to its nearest origin,
// returning the chain origin-first. Only the first recorded upstream is
// followed at each step; merged flows report a single branch. The visited
// set bounds the walk, so a cyclic sources chain terminates.
func (s *State) Trace(start string) []string {
	if _, ok := s.records[start]; !ok {
		return nil
	}

	path := []string{start}
	visited := map[string]bool{}
	current := start

	for {
		rec, ok := s.records[current]
		if !ok || visited[current] {
			break
		}
		visited[current] = true

		if len(rec.Sources) == 0 {
			break
		}
		next := rec.Sources[0]
		if visited[next] {
			break
		}
		path = append([]string{next}, path...)
		current = next
	}
	return path
}

// Chains enumerates maximal forward propagation chains: a depth-first walk
// from every root (a variable with no incoming edge) down to the terminals,
// keeping chains longer than a single node. The visited set is shared
// across roots, so each variable contributes to at most one chain.
func (s *State) Chains() [][]string {
	incoming := make(map[string]bool, len(s.edges))
	for _, e := range s.edges {
		incoming[e[1]] = true
	}

	var chains [][]string
	var path []string
	visited := map[string]bool{}

	var dfs func(name string)
	dfs = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		path = append(path, name)

		next := s.adj[name]
		if len(next) == 0 {
			if len(path) > 1 {
				chain := make([]string, len(path))
				copy(chain, path)
				chains = append(chains, chain)
			}
		} else {
			for _, target := range next {
				dfs(target)
			}
		}
		path = path[:len(path)-1]
	}

	for _, name := range s.order {
		if !incoming[name] {
			dfs(name)
		}
	}
	return chains
}

func containsString(list []string, needle string) bool {
	for _, s := range list {
		if s == needle {
			return true
		}
	}
	return false
}
