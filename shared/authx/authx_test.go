package authx

import (
	"context"
	"testing"
)

func TestParseRoles(t *testing.T) {
	claims := map[string]any{
		"roles": []any{"admin", "staff"},
		"scp":   "read write",
	}
	roles := parseRoles(claims)
	if len(roles) < 3 {
		t.Fatalf("expected roles to include entries, got %v", roles)
	}
}

func TestAuthContextRoundTrip(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{Subject: "sub-1", Roles: []string{"staff"}})
	auth, ok := FromContext(ctx)
	if !ok || auth.Subject != "sub-1" || len(auth.Roles) != 1 {
		t.Fatalf("unexpected auth context: %#v ok=%v", auth, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("empty context must not carry auth")
	}
}

func TestNewJWTVerifierValidation(t *testing.T) {
	if _, err := NewJWTVerifier("", "aud", "", 60, 0); err == nil {
		t.Fatalf("expected error for missing issuer")
	}
}
