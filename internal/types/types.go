// Package types provides the decision-tree domain model shared across choicetree
// components.
//
// Tree nodes carry an explicit NodeKind discriminant set at construction time.
// Consumers switch on Kind rather than probing which fields are populated.
//
// Snapshots are values: the validator only reads them, so a Tree handed to the
// rules package is never mutated.
package types

import "fmt"

// ItemID identifies a decision point or choice.
// Numeric so rule items sort by id rather than lexically.
type ItemID int64

// TreeVersionID identifies one published version of a decision tree.
type TreeVersionID int64

// NodeKind discriminates the four levels of a decision tree.
type NodeKind int

const (
	KindUnspecified NodeKind = iota
	KindGroup
	KindSubGroup
	KindPoint
	KindChoice
)

// String returns the level name used by search filters.
func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "Group"
	case KindSubGroup:
		return "SubGroup"
	case KindPoint:
		return "Decision Point"
	case KindChoice:
		return "Choice"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is the kind-tagged view of any tree node.
type Node struct {
	Kind     NodeKind
	ID       ItemID
	Label    string
	ParentID ItemID // zero for groups
}

// Ref returns the identity of the node; ids are only unique within a kind.
func (n Node) Ref() NodeRef {
	return NodeRef{Kind: n.Kind, ID: n.ID}
}

// NodeRef identifies a node across kinds.
type NodeRef struct {
	Kind NodeKind
	ID   ItemID
}

// Choice is a selectable leaf option under a decision point.
type Choice struct {
	ID      ItemID `yaml:"id" json:"id"`
	Label   string `yaml:"label" json:"label"`
	PointID ItemID `yaml:"-" json:"pointId"`
}

// Node returns the kind-tagged view of the choice.
func (c Choice) Node() Node {
	return Node{Kind: KindChoice, ID: c.ID, Label: c.Label, ParentID: c.PointID}
}

// Point is a decision point: a question under which choices live.
type Point struct {
	ID         ItemID   `yaml:"id" json:"id"`
	Label      string   `yaml:"label" json:"label"`
	SubGroupID ItemID   `yaml:"-" json:"subGroupId"`
	Choices    []Choice `yaml:"choices" json:"choices"`
}

// Node returns the kind-tagged view of the point.
func (p Point) Node() Node {
	return Node{Kind: KindPoint, ID: p.ID, Label: p.Label, ParentID: p.SubGroupID}
}

// SubGroup groups decision points within a group.
type SubGroup struct {
	ID      ItemID  `yaml:"id" json:"id"`
	Label   string  `yaml:"label" json:"label"`
	GroupID ItemID  `yaml:"-" json:"groupId"`
	Points  []Point `yaml:"points" json:"points"`
}

// Node returns the kind-tagged view of the subgroup.
func (s SubGroup) Node() Node {
	return Node{Kind: KindSubGroup, ID: s.ID, Label: s.Label, ParentID: s.GroupID}
}

// Group is the top level of a decision tree.
type Group struct {
	ID        ItemID     `yaml:"id" json:"id"`
	Label     string     `yaml:"label" json:"label"`
	SubGroups []SubGroup `yaml:"subGroups" json:"subGroups"`
}

// Node returns the kind-tagged view of the group.
func (g Group) Node() Node {
	return Node{Kind: KindGroup, ID: g.ID, Label: g.Label}
}

// Tree is an immutable snapshot of one decision tree version.
type Tree struct {
	VersionID TreeVersionID `yaml:"versionId" json:"versionId"`
	Groups    []Group       `yaml:"groups" json:"groups"`
}

// LinkParents fills the parent id of every node from its position in the tree.
// Loaders call it once after decoding, since file formats nest instead of
// repeating parent ids.
func (t *Tree) LinkParents() {
	for gi := range t.Groups {
		g := &t.Groups[gi]
		for si := range g.SubGroups {
			sg := &g.SubGroups[si]
			sg.GroupID = g.ID
			for pi := range sg.Points {
				p := &sg.Points[pi]
				p.SubGroupID = sg.ID
				for ci := range p.Choices {
					p.Choices[ci].PointID = p.ID
				}
			}
		}
	}
}

// Walk visits every node depth-first in tree order.
func (t *Tree) Walk(fn func(Node)) {
	for _, g := range t.Groups {
		fn(g.Node())
		for _, sg := range g.SubGroups {
			fn(sg.Node())
			for _, p := range sg.Points {
				fn(p.Node())
				for _, c := range p.Choices {
					fn(c.Node())
				}
			}
		}
	}
}
