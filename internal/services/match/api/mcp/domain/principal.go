package domain

import (
	"context"
	"fmt"
)

// Principal is the authenticated caller of a tool. An agent principal acts
// as one seated (or queue-hopeful) player; a spectator principal can only
// read public information.
type Principal struct {
	PlayerID  string
	Spectator bool
}

type principalContextKey struct{}

// WithPrincipal attaches the authenticated principal to the context. The
// transport calls this after verifying the bearer token; handlers read it
// back to decide who is acting.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal the transport attached, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// agentPlayer resolves the acting player for a mutation. Spectators and
// unauthenticated callers cannot mutate match state.
func agentPlayer(ctx context.Context) (string, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("no authenticated principal")
	}
	if p.Spectator || p.PlayerID == "" {
		return "", fmt.Errorf("this tool requires a player key, not a spectator key")
	}
	return p.PlayerID, nil
}

// viewerID resolves the reading identity for a query. Spectators read with
// an empty viewer ID, which the engine treats as public-only visibility.
func viewerID(ctx context.Context) string {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.Spectator {
		return ""
	}
	return p.PlayerID
}
