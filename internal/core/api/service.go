// Package api implements the choicetree.v1.RuleService gRPC service.
//
// Handlers are thin: they load a tree version and its rules from the
// provider, compile them, and delegate to the rules engine. Only SaveRule and
// DeleteRule write.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/choicetree/internal/core/auth"
	"github.com/solatis/choicetree/internal/core/config"
	"github.com/solatis/choicetree/internal/core/logging"
	"github.com/solatis/choicetree/internal/rules"
	"github.com/solatis/choicetree/internal/types"
)

// Provider supplies tree snapshots and persists rules. Implemented by
// *store.Store (SQL) and *snapshot.File (YAML).
type Provider interface {
	Tree(ctx context.Context, version types.TreeVersionID) (*types.Tree, error)
	Rules(ctx context.Context, version types.TreeVersionID) ([]types.Rule, error)
	SaveRule(ctx context.Context, version types.TreeVersionID, rule types.Rule) (types.Rule, error)
	DeleteRule(ctx context.Context, id types.RuleID) error
}

// RuleService implements RuleServiceServer.
type RuleService struct {
	provider Provider
	engine   *rules.Engine
	cfg      *config.ServiceConfig
}

var _ RuleServiceServer = (*RuleService)(nil)

// NewRuleService creates the service with its dependencies.
func NewRuleService(provider Provider, engine *rules.Engine, cfg *config.ServiceConfig) (*RuleService, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	return &RuleService{provider: provider, engine: engine, cfg: cfg}, nil
}

// compile loads and compiles one tree version with its rules.
func (s *RuleService) compile(ctx context.Context, version types.TreeVersionID) (*rules.CompiledTree, error) {
	tree, err := s.provider.Tree(ctx, version)
	if err != nil {
		return nil, toStatus(err)
	}
	saved, err := s.provider.Rules(ctx, tree.VersionID)
	if err != nil {
		return nil, toStatus(err)
	}
	compiled, err := rules.Compile(tree, saved)
	if err != nil {
		// Stored data the engine cannot reason about is not the caller's fault
		return nil, status.Errorf(codes.Internal, "tree %d: %v", tree.VersionID, err)
	}
	return compiled, nil
}

// validate runs the engine for req against a freshly compiled tree.
func (s *RuleService) validate(ctx context.Context, req *ValidateRuleRequest) (*rules.CompiledTree, rules.Result, error) {
	if len(req.Items) > s.cfg.MaxRuleItems {
		return nil, rules.Result{}, status.Errorf(codes.InvalidArgument,
			"%v: %d items, limit %d", types.ErrTooManyRuleItems, len(req.Items), s.cfg.MaxRuleItems)
	}

	compiled, err := s.compile(ctx, req.TreeVersionID)
	if err != nil {
		return nil, rules.Result{}, err
	}

	ruleType := types.RuleType(req.RuleType)
	result := s.engine.Validate(ctx, compiled, rules.Request{
		RuleType:     ruleType,
		RuleID:       req.RuleID,
		Edited:       rules.EditedItem{ID: req.EditedID, PointID: req.EditedPointID},
		Candidates:   req.Items,
		DependentIDs: rules.DependentIDs(types.FilterRules(compiled.Rules, ruleType), req.EditedID),
	})
	return compiled, result, nil
}

// ValidateRule reports what saving the request would do without saving.
// A blocked request is a normal response, not an error.
func (s *RuleService) ValidateRule(ctx context.Context, req *ValidateRuleRequest) (*ValidateRuleResponse, error) {
	compiled, result, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := validationResponse(compiled.Tree.VersionID, result)
	return &resp, nil
}

// SaveRule validates and persists a rule. Blocked requests fail with
// INVALID_ARGUMENT; requests with warnings fail with FAILED_PRECONDITION
// until resent with Confirmed set.
func (s *RuleService) SaveRule(ctx context.Context, req *SaveRuleRequest) (*SaveRuleResponse, error) {
	compiled, result, err := s.validate(ctx, &req.ValidateRuleRequest)
	if err != nil {
		return nil, err
	}
	version := compiled.Tree.VersionID
	logger := logging.FromContext(ctx).With(
		slog.String("validation_id", string(result.ValidationID)),
		slog.String("org_id", auth.OrgIDFromContext(ctx)),
	)

	if result.Verdict == rules.VerdictBlocked {
		logger.InfoContext(ctx, "rule save blocked", slog.String("reason", result.Reason.Error()))
		return nil, status.Error(codes.InvalidArgument, result.Reason.Error())
	}
	if result.NeedsConfirmation() && !req.Confirmed {
		messages := make([]string, len(result.Warnings))
		for i, w := range result.Warnings {
			messages[i] = w.Message
		}
		return nil, status.Error(codes.FailedPrecondition, strings.Join(messages, "\n"))
	}

	saved, err := s.provider.SaveRule(ctx, version, types.Rule{
		RuleID:  req.RuleID,
		OwnerID: req.EditedID,
		Type:    types.RuleType(req.RuleType),
		Items:   req.Items,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	logger.InfoContext(ctx, "rule saved",
		slog.String("rule_id", string(saved.RuleID)),
		slog.String("verdict", result.Verdict.String()),
		slog.Bool("confirmed", req.Confirmed),
	)
	return &SaveRuleResponse{Rule: saved, Validation: validationResponse(version, result)}, nil
}

// DeleteRule removes a saved rule.
func (s *RuleService) DeleteRule(ctx context.Context, req *DeleteRuleRequest) (*DeleteRuleResponse, error) {
	if _, err := types.ParseRuleID(string(req.RuleID)); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid rule id %q", req.RuleID)
	}
	if err := s.provider.DeleteRule(ctx, req.RuleID); err != nil {
		return nil, toStatus(err)
	}
	logging.FromContext(ctx).InfoContext(ctx, "rule deleted",
		slog.String("rule_id", string(req.RuleID)),
		slog.String("org_id", auth.OrgIDFromContext(ctx)),
	)
	return &DeleteRuleResponse{}, nil
}

// SearchTree searches a tree version and returns every node with its state.
func (s *RuleService) SearchTree(ctx context.Context, req *SearchTreeRequest) (*SearchTreeResponse, error) {
	filter, err := rules.ParseFilter(req.Filter)
	if err != nil {
		return nil, toStatus(err)
	}
	tree, err := s.provider.Tree(ctx, req.TreeVersionID)
	if err != nil {
		return nil, toStatus(err)
	}

	result := s.engine.Search(ctx, tree, req.Keyword, filter)

	resp := &SearchTreeResponse{TreeVersionID: tree.VersionID, MatchCount: result.MatchCount}
	tree.Walk(func(n types.Node) {
		st := result.State(n.Ref())
		resp.Nodes = append(resp.Nodes, SearchNode{TreeNode: treeNode(n), Matched: st.Matched, Open: st.Open})
	})
	return resp, nil
}

// EligibleItems lists the nodes that may be added to the edited rule.
func (s *RuleService) EligibleItems(ctx context.Context, req *EligibleItemsRequest) (*EligibleItemsResponse, error) {
	ruleType, err := types.ParseRuleType(req.RuleType)
	if err != nil {
		return nil, toStatus(err)
	}
	compiled, err := s.compile(ctx, req.TreeVersionID)
	if err != nil {
		return nil, err
	}

	nodes := compiled.EligibleItems(ruleType, rules.EditedItem{ID: req.EditedID, PointID: req.EditedPointID}, req.Existing)
	resp := &EligibleItemsResponse{TreeVersionID: compiled.Tree.VersionID, Items: make([]TreeNode, len(nodes))}
	for i, n := range nodes {
		resp.Items[i] = treeNode(n)
	}
	return resp, nil
}
