package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/moonfall.town/internal/services/match/api/mcp/domain"
)

const (
	keyRolePlayer    = "player"
	keyRoleSpectator = "spectator"

	keyIssuer = "moonfall.town"
)

// keyClaims is the signed payload of a table key. Subject carries the player
// ID for player keys and stays empty for spectator keys.
type keyClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// MintPlayerKey signs a bearer key that lets an agent act as one player.
func MintPlayerKey(secret []byte, playerID string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(playerID) == "" {
		return "", errors.New("player id is required")
	}
	return mintKey(secret, keyRolePlayer, playerID, ttl, now)
}

// MintSpectatorKey signs a read-only bearer key with no player identity.
func MintSpectatorKey(secret []byte, ttl time.Duration, now time.Time) (string, error) {
	return mintKey(secret, keyRoleSpectator, "", ttl, now)
}

func mintKey(secret []byte, role, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is required")
	}
	if ttl <= 0 {
		return "", errors.New("key ttl must be positive")
	}
	claims := keyClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    keyIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// verifyKey parses a bearer key and maps it to a principal. Only HS256 keys
// signed with the server secret are accepted.
func verifyKey(secret []byte, token string) (domain.Principal, error) {
	var claims keyClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(keyIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("invalid key: %w", err)
	}
	switch claims.Role {
	case keyRolePlayer:
		if claims.Subject == "" {
			return domain.Principal{}, errors.New("player key has no subject")
		}
		return domain.Principal{PlayerID: claims.Subject}, nil
	case keyRoleSpectator:
		return domain.Principal{Spectator: true}, nil
	default:
		return domain.Principal{}, fmt.Errorf("unknown key role %q", claims.Role)
	}
}

// authorizeRequest resolves the caller's principal from the Authorization
// header. With no secret configured the server runs in read-only local mode
// and every caller is a spectator.
func (s *Server) authorizeRequest(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	if len(s.secret) == 0 {
		return domain.Principal{Spectator: true}, true
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return domain.Principal{}, false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return domain.Principal{}, false
	}

	principal, err := verifyKey(s.secret, token)
	if err != nil {
		http.Error(w, "invalid table key", http.StatusUnauthorized)
		return domain.Principal{}, false
	}
	return principal, true
}
