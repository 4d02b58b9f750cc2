package server

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/choicetree/internal/core/api"
	"github.com/solatis/choicetree/internal/core/auth"
	"github.com/solatis/choicetree/internal/core/config"
	"github.com/solatis/choicetree/internal/core/db"
	"github.com/solatis/choicetree/internal/core/store"
	"github.com/solatis/choicetree/internal/rules"
	"github.com/solatis/choicetree/internal/snapshot"
	"github.com/solatis/choicetree/internal/types"
)

type rpcRecord struct {
	method string
	code   codes.Code
}

type recordingObserver struct {
	mu      sync.Mutex
	records []rpcRecord
}

func (r *recordingObserver) ObserveRPC(method string, code codes.Code, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rpcRecord{method, code})
}

type harness struct {
	client   *api.Client
	conn     *grpc.ClientConn
	apiKey   string
	observer *recordingObserver
}

// startServer runs the full stack over bufconn: sqlite store seeded with the
// catalog fixture, API key auth, and an RPC observer.
func startServer(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = db.MigrateUp(ctx, conn)
	require.NoError(t, err)
	queries, err := db.LoadQueries(conn)
	require.NoError(t, err)

	st := store.New(queries, nil)
	snap, err := snapshot.Open("../../snapshot/testdata/catalog.yaml", nil)
	require.NoError(t, err)
	tree, err := snap.Tree(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, st.PublishTree(ctx, tree))
	saved, err := snap.Rules(ctx, 0)
	require.NoError(t, err)
	for _, r := range saved {
		_, err := st.SaveRule(ctx, 0, r)
		require.NoError(t, err)
	}

	authenticator := auth.NewAuthenticator(map[string][]byte{
		"0190a1b2c3d47000800000000000000a": []byte("0123456789abcdef0123456789abcdef"),
	}, queries, nil)
	_, key, err := authenticator.Issue(ctx, "org-acme", "test")
	require.NoError(t, err)

	cfg := config.DefaultServiceConfig()
	svc, err := api.NewRuleService(st, rules.NewEngine(nil, nil), cfg)
	require.NoError(t, err)

	observer := &recordingObserver{}
	srv, err := NewGRPCServer(cfg, svc, Options{Authenticator: authenticator, Observer: observer})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })

	return &harness{client: api.NewClient(cc), conn: cc, apiKey: key, observer: observer}
}

func (h *harness) authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", h.apiKey)
}

func TestServer_HealthWithoutKey(t *testing.T) {
	h := startServer(t)

	resp, err := grpc_health_v1.NewHealthClient(h.conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestServer_RequiresKey(t *testing.T) {
	h := startServer(t)

	_, err := h.client.SearchTree(context.Background(), &api.SearchTreeRequest{Keyword: "oak"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_SearchTree(t *testing.T) {
	h := startServer(t)

	resp, err := h.client.SearchTree(h.authed(), &api.SearchTreeRequest{Keyword: "oak", Filter: "Choice"})
	require.NoError(t, err)
	assert.Equal(t, types.TreeVersionID(7), resp.TreeVersionID)
	assert.Equal(t, 4, resp.MatchCount)
}

func TestServer_SaveRuleConfirmation(t *testing.T) {
	h := startServer(t)
	ctx := h.authed()

	req := &api.SaveRuleRequest{ValidateRuleRequest: api.ValidateRuleRequest{
		RuleType: "point",
		EditedID: 100,
		Items:    []types.RuleItem{{ItemID: 101, Label: "Gutters", TypeID: types.MustHave}},
	}}

	_, err := h.client.SaveRule(ctx, req)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "circular reference: Gutters")

	req.Confirmed = true
	resp, err := h.client.SaveRule(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "confirm_circular", resp.Validation.Verdict)

	_, err = h.client.DeleteRule(ctx, &api.DeleteRuleRequest{RuleID: resp.Rule.RuleID})
	require.NoError(t, err)
}

func TestServer_ObservesRequests(t *testing.T) {
	h := startServer(t)

	_, err := h.client.EligibleItems(h.authed(), &api.EligibleItemsRequest{RuleType: "choice", EditedID: 2001})
	require.NoError(t, err)
	_, err = h.client.ValidateRule(context.Background(), &api.ValidateRuleRequest{RuleType: "point"})
	require.Error(t, err)

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	assert.Equal(t, []rpcRecord{
		{api.MethodEligibleItems, codes.OK},
		{api.MethodValidateRule, codes.Unauthenticated},
	}, h.observer.records)
}
