package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator("test-secret", "sensei", "sensei-api")
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	return v
}

func TestValidateRoundTrip(t *testing.T) {
	v := newTestValidator(t)
	token, err := v.IssueToken("u1", "u1@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Email != "u1@example.com" {
		t.Errorf("email = %q", claims.Email)
	}
}

func TestValidateBearerPrefix(t *testing.T) {
	v := newTestValidator(t)
	token, _ := v.IssueToken("u1", "", time.Hour)

	headers := []string{
		"Bearer " + token,
		"bearer " + token,
		"BEARER " + token,
		"  Bearer " + token + "  ",
		token,
	}
	for _, h := range headers {
		if _, err := v.Validate(h); err != nil {
			t.Errorf("Validate(%q) failed: %v", h, err)
		}
	}
}

func TestValidateMissingToken(t *testing.T) {
	v := newTestValidator(t)
	if _, err := v.Validate("  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	v := newTestValidator(t)
	token, _ := v.IssueToken("u1", "", -time.Minute)
	if _, err := v.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	v := newTestValidator(t)
	other, _ := NewValidator("other-secret", "sensei", "sensei-api")
	token, _ := other.IssueToken("u1", "", time.Hour)
	if _, err := v.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateWrongIssuer(t *testing.T) {
	v := newTestValidator(t)
	imposter, _ := NewValidator("test-secret", "someone-else", "sensei-api")
	token, _ := imposter.IssueToken("u1", "", time.Hour)
	if _, err := v.Validate(token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestValidateRejectsUnsignedAlg(t *testing.T) {
	v := newTestValidator(t)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "u1", Issuer: "sensei", Audience: jwt.ClaimStrings{"sensei-api"},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Validate(token); err == nil {
		t.Fatal("expected alg=none to be rejected")
	}
}

func TestValidateMissingSubject(t *testing.T) {
	v := newTestValidator(t)
	token, _ := v.IssueToken("", "", time.Hour)
	if _, err := v.Validate(token); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims, got %v", err)
	}
}

func TestUserIDContext(t *testing.T) {
	ctx := WithUserID(context.Background(), "u1")
	id, ok := UserID(ctx)
	if !ok || id != "u1" {
		t.Errorf("got %q, %v", id, ok)
	}
	if _, ok := UserID(context.Background()); ok {
		t.Error("empty context should carry no user")
	}
}
