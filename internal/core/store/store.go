// Package store persists decision trees and their rules in SQL.
//
// Published tree versions are immutable, so loaded trees are cached per
// version and concurrent first loads collapse into one query. Rules change
// with every save and are always read through.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/solatis/choicetree/internal/core/db"
	"github.com/solatis/choicetree/internal/types"
)

// Store implements tree loading and rule persistence over named queries.
type Store struct {
	queries *db.Queries
	logger  *slog.Logger

	loads singleflight.Group
	mu    sync.RWMutex
	trees map[types.TreeVersionID]*types.Tree
}

// New creates a store over loaded queries.
func New(queries *db.Queries, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		queries: queries,
		logger:  logger,
		trees:   make(map[types.TreeVersionID]*types.Tree),
	}
}

type nodeRow struct {
	Kind     types.NodeKind `db:"kind"`
	NodeID   types.ItemID   `db:"node_id"`
	ParentID types.ItemID   `db:"parent_id"`
	Label    string         `db:"label"`
}

type ruleItemRow struct {
	RuleID        types.RuleID        `db:"rule_id"`
	RuleType      types.RuleType      `db:"rule_type"`
	OwnerID       types.ItemID        `db:"owner_id"`
	ItemID        types.ItemID        `db:"item_id"`
	TypeID        types.RuleTypeID    `db:"type_id"`
	Label         string              `db:"label"`
	TreeVersionID types.TreeVersionID `db:"tree_version_id"`
}

// LatestVersion returns the highest published tree version.
func (s *Store) LatestVersion(ctx context.Context) (types.TreeVersionID, error) {
	var v types.TreeVersionID
	if err := s.queries.Get(ctx, "latest-tree-version", &v); err != nil {
		return 0, fmt.Errorf("failed to query latest tree version: %w", err)
	}
	if v == 0 {
		return 0, fmt.Errorf("%w: no published versions", types.ErrTreeNotFound)
	}
	return v, nil
}

func (s *Store) resolve(ctx context.Context, version types.TreeVersionID) (types.TreeVersionID, error) {
	if version != 0 {
		return version, nil
	}
	return s.LatestVersion(ctx)
}

// Tree returns the tree for a version. Version zero means the latest.
func (s *Store) Tree(ctx context.Context, version types.TreeVersionID) (*types.Tree, error) {
	version, err := s.resolve(ctx, version)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	tree, ok := s.trees[version]
	s.mu.RUnlock()
	if ok {
		return tree, nil
	}

	key := strconv.FormatInt(int64(version), 10)
	v, err, shared := s.loads.Do(key, func() (any, error) {
		tree, err := s.loadTree(ctx, version)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.trees[version] = tree
		s.mu.Unlock()
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "shared tree load", slog.Int64("tree_version_id", int64(version)))
	}
	return v.(*types.Tree), nil
}

// loadTree assembles a tree from its node rows. Rows arrive in depth-first
// order, so every parent precedes its children.
func (s *Store) loadTree(ctx context.Context, version types.TreeVersionID) (*types.Tree, error) {
	var rows []nodeRow
	if err := s.queries.Select(ctx, "list-tree-nodes", &rows, version); err != nil {
		return nil, fmt.Errorf("failed to load tree %d: %w", version, err)
	}
	if len(rows) == 0 {
		var n int
		if err := s.queries.Get(ctx, "count-tree-version", &n, version); err != nil {
			return nil, fmt.Errorf("failed to load tree %d: %w", version, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %d", types.ErrTreeNotFound, version)
		}
	}

	tree := &types.Tree{VersionID: version}
	groups := map[types.ItemID]int{}
	subGroups := map[types.ItemID][2]int{}
	points := map[types.ItemID][3]int{}

	for _, r := range rows {
		switch r.Kind {
		case types.KindGroup:
			groups[r.NodeID] = len(tree.Groups)
			tree.Groups = append(tree.Groups, types.Group{ID: r.NodeID, Label: r.Label})
		case types.KindSubGroup:
			gi, ok := groups[r.ParentID]
			if !ok {
				return nil, orphanErr(version, r)
			}
			g := &tree.Groups[gi]
			subGroups[r.NodeID] = [2]int{gi, len(g.SubGroups)}
			g.SubGroups = append(g.SubGroups, types.SubGroup{ID: r.NodeID, Label: r.Label})
		case types.KindPoint:
			at, ok := subGroups[r.ParentID]
			if !ok {
				return nil, orphanErr(version, r)
			}
			sg := &tree.Groups[at[0]].SubGroups[at[1]]
			points[r.NodeID] = [3]int{at[0], at[1], len(sg.Points)}
			sg.Points = append(sg.Points, types.Point{ID: r.NodeID, Label: r.Label})
		case types.KindChoice:
			at, ok := points[r.ParentID]
			if !ok {
				return nil, orphanErr(version, r)
			}
			p := &tree.Groups[at[0]].SubGroups[at[1]].Points[at[2]]
			p.Choices = append(p.Choices, types.Choice{ID: r.NodeID, Label: r.Label})
		default:
			return nil, fmt.Errorf("tree %d: node %d has unknown kind %d", version, r.NodeID, r.Kind)
		}
	}

	tree.LinkParents()
	return tree, nil
}

func orphanErr(version types.TreeVersionID, r nodeRow) error {
	return fmt.Errorf("tree %d: %s %d references missing parent %d", version, r.Kind, r.NodeID, r.ParentID)
}

// Rules returns every rule of a tree version. Version zero means the latest.
func (s *Store) Rules(ctx context.Context, version types.TreeVersionID) ([]types.Rule, error) {
	version, err := s.resolve(ctx, version)
	if err != nil {
		return nil, err
	}

	var rows []ruleItemRow
	if err := s.queries.Select(ctx, "list-rule-items", &rows, version); err != nil {
		return nil, fmt.Errorf("failed to load rules for tree %d: %w", version, err)
	}

	var rules []types.Rule
	for _, r := range rows {
		if n := len(rules); n == 0 || rules[n-1].RuleID != r.RuleID {
			rules = append(rules, types.Rule{RuleID: r.RuleID, OwnerID: r.OwnerID, Type: r.RuleType})
		}
		last := &rules[len(rules)-1]
		last.Items = append(last.Items, types.RuleItem{
			ItemID:        r.ItemID,
			Label:         r.Label,
			TypeID:        r.TypeID,
			TreeVersionID: r.TreeVersionID,
		})
	}
	return rules, nil
}

// PublishTree stores a new immutable tree version.
func (s *Store) PublishTree(ctx context.Context, tree *types.Tree) error {
	if tree.VersionID <= 0 {
		return fmt.Errorf("tree version must be positive, got %d", tree.VersionID)
	}
	err := s.queries.InTx(ctx, func(tx *db.Tx) error {
		return publishTree(ctx, tx, tree)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "tree published", slog.Int64("tree_version_id", int64(tree.VersionID)))
	return nil
}

// Import publishes a tree version together with its rules in one
// transaction. Either the whole version is stored or nothing is.
func (s *Store) Import(ctx context.Context, tree *types.Tree, rules []types.Rule) ([]types.Rule, error) {
	if tree.VersionID <= 0 {
		return nil, fmt.Errorf("tree version must be positive, got %d", tree.VersionID)
	}

	now := time.Now().UTC()
	saved := make([]types.Rule, 0, len(rules))
	err := s.queries.InTx(ctx, func(tx *db.Tx) error {
		if err := publishTree(ctx, tx, tree); err != nil {
			return err
		}
		for _, r := range rules {
			r = prepareRule(r, tree.VersionID)
			if err := saveRule(ctx, tx, tree.VersionID, r, now); err != nil {
				return err
			}
			saved = append(saved, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tree imported",
		slog.Int64("tree_version_id", int64(tree.VersionID)),
		slog.Int("rules", len(saved)),
	)
	return saved, nil
}

func publishTree(ctx context.Context, tx *db.Tx, tree *types.Tree) error {
	if _, err := tx.Exec(ctx, "insert-tree-version", tree.VersionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert tree version %d: %w", tree.VersionID, err)
	}

	order := 0
	var walkErr error
	tree.Walk(func(n types.Node) {
		if walkErr != nil {
			return
		}
		_, walkErr = tx.Exec(ctx, "insert-tree-node", tree.VersionID, n.Kind, n.ID, n.ParentID, n.Label, order)
		order++
	})
	if walkErr != nil {
		return fmt.Errorf("failed to insert tree node: %w", walkErr)
	}
	return nil
}

// SaveRule inserts or replaces a rule in a tree version and returns the
// stored rule. A rule without an id gets a new UUIDv7.
func (s *Store) SaveRule(ctx context.Context, version types.TreeVersionID, rule types.Rule) (types.Rule, error) {
	version, err := s.resolve(ctx, version)
	if err != nil {
		return types.Rule{}, err
	}
	rule = prepareRule(rule, version)

	err = s.queries.InTx(ctx, func(tx *db.Tx) error {
		var n int
		if err := tx.Get(ctx, "count-tree-version", &n, version); err != nil {
			return fmt.Errorf("failed to check tree version: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %d", types.ErrTreeNotFound, version)
		}
		return saveRule(ctx, tx, version, rule, time.Now().UTC())
	})
	if err != nil {
		return types.Rule{}, err
	}

	s.logger.InfoContext(ctx, "rule saved",
		slog.String("rule_id", string(rule.RuleID)),
		slog.String("rule_type", string(rule.Type)),
		slog.Int64("owner_id", int64(rule.OwnerID)),
		slog.Int("items", len(rule.Items)),
	)
	return rule, nil
}

// prepareRule assigns a missing id and pins every item to version.
// Items are copied so the caller's slice is left as it was.
func prepareRule(rule types.Rule, version types.TreeVersionID) types.Rule {
	if rule.RuleID == "" {
		rule.RuleID = types.NewRuleID()
	}
	rule.Items = append([]types.RuleItem(nil), rule.Items...)
	for i := range rule.Items {
		rule.Items[i].TreeVersionID = version
	}
	return rule
}

// saveRule upserts rule and replaces its items. The tree version must exist.
func saveRule(ctx context.Context, tx *db.Tx, version types.TreeVersionID, rule types.Rule, now time.Time) error {
	var existing types.TreeVersionID
	err := tx.Get(ctx, "get-rule-version", &existing, rule.RuleID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to look up rule %s: %w", rule.RuleID, err)
	case existing != version:
		return fmt.Errorf("rule %s belongs to tree version %d, not %d", rule.RuleID, existing, version)
	}

	if _, err := tx.Exec(ctx, "upsert-rule", rule.RuleID, version, rule.Type, rule.OwnerID, now, now); err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.RuleID, err)
	}
	if _, err := tx.Exec(ctx, "delete-rule-items", rule.RuleID); err != nil {
		return fmt.Errorf("failed to replace items of rule %s: %w", rule.RuleID, err)
	}
	for pos, it := range rule.Items {
		if _, err := tx.Exec(ctx, "insert-rule-item", rule.RuleID, pos, it.ItemID, it.TypeID, it.Label, version); err != nil {
			return fmt.Errorf("failed to save item %d of rule %s: %w", it.ItemID, rule.RuleID, err)
		}
	}
	return nil
}

// DeleteRule removes a rule and its items.
func (s *Store) DeleteRule(ctx context.Context, id types.RuleID) error {
	err := s.queries.InTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, "delete-rule-items", id); err != nil {
			return fmt.Errorf("failed to delete items of rule %s: %w", id, err)
		}
		res, err := tx.Exec(ctx, "delete-rule", id)
		if err != nil {
			return fmt.Errorf("failed to delete rule %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete rule %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "rule deleted", slog.String("rule_id", string(id)))
	return nil
}
