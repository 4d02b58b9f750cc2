// Package auth provides HMAC-based API key authentication for gRPC services.
//
// Keys are never stored: api_keys holds the HMAC of each key under a secret
// identified by the key itself, so rotating secrets keeps old keys valid
// until their secret is removed from the environment.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

const orgIDKey = contextKey("org_id")

// lastUsedThrottle bounds how often an active key's last_used_at is written.
const lastUsedThrottle = time.Minute

// Queries is the subset of *db.Queries used for key lookup.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type keyRow struct {
	APIKeyID   string       `db:"api_key_id"`
	OrgID      string       `db:"org_id"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
}

// Authenticate validates an API key and returns the owning org id.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var row keyRow
	err = a.queries.Get(ctx, "get-api-key-by-hash", &row, HashKey(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if row.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	if a.shouldUpdateLastUsed(row.LastUsedAt) {
		if _, err := a.queries.Exec(ctx, "update-last-used", a.now(), row.APIKeyID); err != nil {
			a.logger.WarnContext(ctx, "failed to record key use", slog.String("api_key_id", row.APIKeyID), slog.Any("error", err))
		}
	}

	return row.OrgID, nil
}

func (a *Authenticator) shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return a.now().Sub(lastUsed.Time) > lastUsedThrottle
}

// Issue creates a key for org under the newest configured secret. The key
// is returned once; only its HMAC is stored.
func (a *Authenticator) Issue(ctx context.Context, orgID, name string) (keyID, apiKey string, err error) {
	if len(a.secrets) == 0 {
		return "", "", ErrNoSecrets
	}

	// Secret ids are UUIDv7 hex, so the greatest id is the newest secret
	ids := make([]string, 0, len(a.secrets))
	for id := range a.secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	secretID := ids[len(ids)-1]

	apiKey, err = GenerateAPIKey(secretID)
	if err != nil {
		return "", "", err
	}

	keyID = uuid.Must(uuid.NewV7()).String()
	_, err = a.queries.Exec(ctx, "insert-api-key", keyID, orgID, name, secretID, HashKey(a.secrets[secretID], apiKey), a.now())
	if err != nil {
		return "", "", fmt.Errorf("failed to store API key: %w", err)
	}
	return keyID, apiKey, nil
}

// Revoke marks a key revoked. Revoking twice is not an error.
func (a *Authenticator) Revoke(ctx context.Context, keyID string) error {
	if _, err := a.queries.Exec(ctx, "revoke-api-key", a.now(), keyID); err != nil {
		return fmt.Errorf("failed to revoke API key %s: %w", keyID, err)
	}
	return nil
}

// UnaryInterceptor returns a gRPC interceptor that authenticates requests.
// Health checks pass through unauthenticated.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		orgID, err := a.Authenticate(ctx, apiKeys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrUnavailable):
			a.logger.ErrorContext(ctx, "authentication failed", slog.Any("error", err))
			return nil, status.Error(codes.Unavailable, ErrUnavailable.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(WithOrgID(ctx, orgID), req)
	}
}

// WithOrgID returns ctx carrying an authenticated org id.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgIDFromContext extracts the org id; empty when unauthenticated.
func OrgIDFromContext(ctx context.Context) string {
	if orgID, ok := ctx.Value(orgIDKey).(string); ok {
		return orgID
	}
	return ""
}
