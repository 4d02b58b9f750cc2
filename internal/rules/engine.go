package rules

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/solatis/choicetree/internal/types"
)

// Observer receives validation and search outcomes for metrics.
type Observer interface {
	ObserveValidation(ruleType types.RuleType, verdict Verdict, elapsed time.Duration)
	ObserveSearch(filter Filter, matches int)
}

type nopObserver struct{}

func (nopObserver) ObserveValidation(types.RuleType, Verdict, time.Duration) {}
func (nopObserver) ObserveSearch(Filter, int)                              {}

// Engine wraps the pure validation functions with logging and metrics.
// Stateless apart from its collaborators; safe for concurrent use.
type Engine struct {
	logger   *slog.Logger
	observer Observer
}

// NewEngine creates a rules engine. Nil arguments fall back to a discarding
// logger and a no-op observer.
func NewEngine(logger *slog.Logger, observer Observer) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Engine{logger: logger, observer: observer}
}

// Validate runs Validate and records the outcome.
func (e *Engine) Validate(ctx context.Context, tree *CompiledTree, req Request) Result {
	start := time.Now()
	result := Validate(tree, req)
	e.observer.ObserveValidation(req.RuleType, result.Verdict, time.Since(start))

	attrs := []any{
		slog.String("validation_id", string(result.ValidationID)),
		slog.String("rule_type", string(req.RuleType)),
		slog.Int64("edited_id", int64(req.Edited.ID)),
		slog.Int("candidates", len(req.Candidates)),
		slog.String("verdict", result.Verdict.String()),
	}
	if result.Reason != nil {
		attrs = append(attrs, slog.String("reason", result.Reason.Error()))
	}
	e.logger.DebugContext(ctx, "rule validated", attrs...)
	return result
}

// Search runs SearchTree and records the outcome.
func (e *Engine) Search(ctx context.Context, tree *types.Tree, keyword string, filter Filter) SearchResult {
	result := SearchTree(tree.Groups, keyword, filter)
	e.observer.ObserveSearch(filter, result.MatchCount)
	e.logger.DebugContext(ctx, "tree searched",
		slog.Int64("tree_version_id", int64(tree.VersionID)),
		slog.String("filter", string(filter)),
		slog.Int("matches", result.MatchCount),
	)
	return result
}
