// Package snapshot provides a file-backed tree provider.
//
// A snapshot file is YAML holding one tree version and its rules. The file is
// reloaded when it changes on disk, so a decision tree exported from the
// catalog can be validated against without a database.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/solatis/choicetree/internal/types"
)

// document is the on-disk layout of a snapshot file.
type document struct {
	VersionID types.TreeVersionID `yaml:"versionId"`
	Groups    []types.Group       `yaml:"groups"`
	Rules     []types.Rule        `yaml:"rules"`
}

// File serves a tree snapshot from a YAML file.
type File struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	tree  *types.Tree
	rules []types.Rule
}

// Open reads the snapshot at path.
func Open(path string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	f := &File{path: path, logger: logger}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Decode parses a snapshot document. Rules without an id are given a new
// UUIDv7.
func Decode(r io.Reader) (*types.Tree, []types.Rule, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	tree := &types.Tree{VersionID: doc.VersionID, Groups: doc.Groups}
	tree.LinkParents()

	for i := range doc.Rules {
		// Rules exported without an id still need one to be edited or deleted
		if doc.Rules[i].RuleID == "" {
			doc.Rules[i].RuleID = types.NewRuleID()
		}
		for j := range doc.Rules[i].Items {
			if doc.Rules[i].Items[j].TreeVersionID == 0 {
				doc.Rules[i].Items[j].TreeVersionID = doc.VersionID
			}
		}
	}
	return tree, doc.Rules, nil
}

// reload re-reads the file and swaps the snapshot atomically.
func (f *File) reload() error {
	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer fh.Close()

	tree, rules, err := Decode(fh)
	if err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}

	f.mu.Lock()
	f.tree = tree
	f.rules = rules
	f.mu.Unlock()
	return nil
}

// Tree returns the snapshot tree. Version zero means the loaded version.
func (f *File) Tree(ctx context.Context, version types.TreeVersionID) (*types.Tree, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if version != 0 && version != f.tree.VersionID {
		return nil, fmt.Errorf("%w: %d", types.ErrTreeNotFound, version)
	}
	return f.tree, nil
}

// Rules returns a copy of the snapshot rules.
func (f *File) Rules(ctx context.Context, version types.TreeVersionID) ([]types.Rule, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if version != 0 && version != f.tree.VersionID {
		return nil, fmt.Errorf("%w: %d", types.ErrTreeNotFound, version)
	}
	return append([]types.Rule(nil), f.rules...), nil
}

// SaveRule inserts or replaces a rule and rewrites the file.
// A rule without an id gets a new UUIDv7.
func (f *File) SaveRule(ctx context.Context, version types.TreeVersionID, rule types.Rule) (types.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if version != 0 && version != f.tree.VersionID {
		return types.Rule{}, fmt.Errorf("%w: %d", types.ErrTreeNotFound, version)
	}

	if rule.RuleID == "" {
		rule.RuleID = types.NewRuleID()
	}
	for i := range rule.Items {
		rule.Items[i].TreeVersionID = f.tree.VersionID
	}

	rules := append([]types.Rule(nil), f.rules...)
	replaced := false
	for i := range rules {
		if rules[i].RuleID == rule.RuleID {
			rules[i] = rule
			replaced = true
		}
	}
	if !replaced {
		rules = append(rules, rule)
	}

	if err := f.write(rules); err != nil {
		return types.Rule{}, err
	}
	f.rules = rules
	return rule, nil
}

// DeleteRule removes a rule and rewrites the file.
func (f *File) DeleteRule(ctx context.Context, id types.RuleID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rules := make([]types.Rule, 0, len(f.rules))
	for _, r := range f.rules {
		if r.RuleID != id {
			rules = append(rules, r)
		}
	}
	if len(rules) == len(f.rules) {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}

	if err := f.write(rules); err != nil {
		return err
	}
	f.rules = rules
	return nil
}

// write replaces the file via rename so readers never see a partial document.
// Caller holds f.mu.
func (f *File) write(rules []types.Rule) error {
	doc := document{VersionID: f.tree.VersionID, Groups: f.tree.Groups, Rules: rules}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".snapshot-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// Watch reloads the snapshot whenever the file changes, until ctx is done.
// The directory is watched rather than the file because editors and write()
// replace the file by rename.
func (f *File) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := f.reload(); err != nil {
				// Keep serving the last good snapshot
				f.logger.Warn("snapshot reload failed", slog.String("path", f.path), slog.Any("error", err))
				continue
			}
			f.logger.Info("snapshot reloaded", slog.String("path", f.path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("snapshot watcher error", slog.Any("error", err))
		}
	}
}
