package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func TestMintPlayerKeyRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	token, err := MintPlayerKey(testSecret, "wolf-1", time.Hour, now)
	if err != nil {
		t.Fatalf("mint player key: %v", err)
	}

	principal, err := verifyKey(testSecret, token)
	if err != nil {
		t.Fatalf("verify key: %v", err)
	}
	if principal.PlayerID != "wolf-1" {
		t.Fatalf("player id = %q, want wolf-1", principal.PlayerID)
	}
	if principal.Spectator {
		t.Fatalf("player key should not be a spectator")
	}
}

func TestMintSpectatorKeyRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	token, err := MintSpectatorKey(testSecret, time.Hour, now)
	if err != nil {
		t.Fatalf("mint spectator key: %v", err)
	}

	principal, err := verifyKey(testSecret, token)
	if err != nil {
		t.Fatalf("verify key: %v", err)
	}
	if !principal.Spectator {
		t.Fatalf("expected spectator principal")
	}
	if principal.PlayerID != "" {
		t.Fatalf("spectator key should carry no player id, got %q", principal.PlayerID)
	}
}

func TestMintPlayerKeyRequiresPlayerID(t *testing.T) {
	if _, err := MintPlayerKey(testSecret, "  ", time.Hour, time.Now()); err == nil {
		t.Fatalf("expected error for blank player id")
	}
}

func TestVerifyKeyRejectsWrongSecret(t *testing.T) {
	token, err := MintPlayerKey(testSecret, "wolf-1", time.Hour, time.Now().UTC())
	if err != nil {
		t.Fatalf("mint player key: %v", err)
	}
	if _, err := verifyKey([]byte("other-secret"), token); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}
}

func TestVerifyKeyRejectsExpired(t *testing.T) {
	issued := time.Now().UTC().Add(-2 * time.Hour)
	token, err := MintPlayerKey(testSecret, "wolf-1", time.Hour, issued)
	if err != nil {
		t.Fatalf("mint player key: %v", err)
	}
	if _, err := verifyKey(testSecret, token); err == nil {
		t.Fatalf("expected verification failure for expired key")
	}
}

func TestVerifyKeyRejectsUnsignedAlgorithm(t *testing.T) {
	claims := keyClaims{
		Role: keyRolePlayer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    keyIssuer,
			Subject:   "wolf-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := verifyKey(testSecret, token); err == nil {
		t.Fatalf("expected rejection of alg=none key")
	}
}

func TestVerifyKeyRejectsUnknownRole(t *testing.T) {
	claims := keyClaims{
		Role: "referee",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    keyIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	_, err = verifyKey(testSecret, token)
	if err == nil || !strings.Contains(err.Error(), "unknown key role") {
		t.Fatalf("expected unknown role error, got %v", err)
	}
}
