// internal/rules/search.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/choicetree/internal/types"
)

/*
 * Keyword search over a decision tree.
 *
 * Depth-first match-and-propagate:
 *   1. A level is compared (case-insensitive substring) only when the filter
 *      is All or names that level.
 *   2. A direct match marks the node matched+open and every descendant
 *      matched (inherited), whether or not the descendant matches itself.
 *   3. A node that does not match but has a matched descendant is marked
 *      matched+open so the path to the result is expanded. Its non-matching
 *      siblings are untouched.
 *
 * MatchCount counts every node that ends up matched: direct matches,
 * inherited descendants and ancestors opened to reveal a descendant. Each
 * node is counted once.
 *
 * The result is a fresh map per call covering every node in the tree. Tree
 * nodes are never annotated in place, so repeated searches need no reset and
 * an empty keyword yields the all-false baseline.
 */

// Filter restricts which tree level a keyword is compared against.
type Filter string

const (
	FilterAll      Filter = "All"
	FilterGroup    Filter = "Group"
	FilterSubGroup Filter = "SubGroup"
	FilterPoint    Filter = "Decision Point"
	FilterChoice   Filter = "Choice"
)

// ParseFilter validates a filter name. Empty means All.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterGroup, FilterSubGroup, FilterPoint, FilterChoice:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnknownFilter, s)
	}
}

// NodeState is the per-node outcome of a search.
type NodeState struct {
	Matched bool
	Open    bool
}

// SearchResult holds the match count and the state of every node.
type SearchResult struct {
	MatchCount int
	Nodes      map[types.NodeRef]NodeState
}

// State returns the state of one node; unknown nodes are unmatched.
func (r SearchResult) State(ref types.NodeRef) NodeState {
	return r.Nodes[ref]
}

// SearchTree searches groups for keyword restricted by filter.
func SearchTree(groups []types.Group, keyword string, filter Filter) SearchResult {
	s := &searcher{
		keyword: strings.ToLower(keyword),
		filter:  filter,
		result:  SearchResult{Nodes: make(map[types.NodeRef]NodeState)},
	}

	tree := types.Tree{Groups: groups}
	tree.Walk(func(n types.Node) {
		s.result.Nodes[n.Ref()] = NodeState{}
	})

	if keyword == "" {
		return s.result
	}

	for _, g := range groups {
		s.group(g)
	}
	return s.result
}

type searcher struct {
	keyword string
	filter  Filter
	result  SearchResult
}

// matches compares label when the filter admits kind.
func (s *searcher) matches(kind types.NodeKind, label string) bool {
	if s.filter != FilterAll && string(s.filter) != kind.String() {
		return false
	}
	return strings.Contains(strings.ToLower(label), s.keyword)
}

// hit marks a direct match and counts it.
func (s *searcher) hit(n types.Node) {
	s.result.Nodes[n.Ref()] = NodeState{Matched: true, Open: true}
	s.result.MatchCount++
}

// inherit marks a descendant of a direct match and counts it.
func (s *searcher) inherit(n types.Node) {
	state := s.result.Nodes[n.Ref()]
	state.Matched = true
	s.result.Nodes[n.Ref()] = state
	s.result.MatchCount++
}

// reveal opens an ancestor of a match and counts it.
func (s *searcher) reveal(n types.Node) {
	s.result.Nodes[n.Ref()] = NodeState{Matched: true, Open: true}
	s.result.MatchCount++
}

func (s *searcher) group(g types.Group) bool {
	if s.matches(types.KindGroup, g.Label) {
		s.hit(g.Node())
		for _, sg := range g.SubGroups {
			s.inheritSubGroup(sg)
		}
		return true
	}

	found := false
	for _, sg := range g.SubGroups {
		if s.subGroup(sg) {
			found = true
		}
	}
	if found {
		s.reveal(g.Node())
	}
	return found
}

func (s *searcher) subGroup(sg types.SubGroup) bool {
	if s.matches(types.KindSubGroup, sg.Label) {
		s.hit(sg.Node())
		for _, p := range sg.Points {
			s.inheritPoint(p)
		}
		return true
	}

	found := false
	for _, p := range sg.Points {
		if s.point(p) {
			found = true
		}
	}
	if found {
		s.reveal(sg.Node())
	}
	return found
}

func (s *searcher) point(p types.Point) bool {
	if s.matches(types.KindPoint, p.Label) {
		s.hit(p.Node())
		for _, c := range p.Choices {
			s.inherit(c.Node())
		}
		return true
	}

	found := false
	for _, c := range p.Choices {
		if s.matches(types.KindChoice, c.Label) {
			s.hit(c.Node())
			found = true
		}
	}
	if found {
		s.reveal(p.Node())
	}
	return found
}

func (s *searcher) inheritSubGroup(sg types.SubGroup) {
	s.inherit(sg.Node())
	for _, p := range sg.Points {
		s.inheritPoint(p)
	}
}

func (s *searcher) inheritPoint(p types.Point) {
	s.inherit(p.Node())
	for _, c := range p.Choices {
		s.inherit(c.Node())
	}
}
