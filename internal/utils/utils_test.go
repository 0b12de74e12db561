package utils

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", Claims{UserID: 7, FestivalID: 2, Role: "BOXOFFICE"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatal(err)
	}
	if c.UserID != 7 || c.FestivalID != 2 || c.Role != "BOXOFFICE" {
		t.Fatalf("claims = %+v", c)
	}
	if _, err := ParseAccessToken("other", tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret accepted: %v", err)
	}
}

func TestParseAccessTokenRejectsExpiredAndMissingFestival(t *testing.T) {
	expired, _ := NewAccessToken("k", Claims{UserID: 1, FestivalID: 1, Role: "ADMIN"}, -1)
	if _, err := ParseAccessToken("k", expired.Token); err == nil {
		t.Error("expired token accepted")
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 1, "role": "ADMIN", "exp": 9999999999}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("k", raw); err == nil {
		t.Error("token without festival accepted")
	}
}

func TestRefreshTokenHash(t *testing.T) {
	rt, err := NewRefreshToken(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.Raw) != 96 {
		t.Errorf("raw length = %d", len(rt.Raw))
	}
	if HashRefreshRaw(rt.Raw) != HashRefreshRaw(rt.Raw) || len(HashRefreshRaw(rt.Raw)) != 64 {
		t.Error("hash not stable")
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("pa55word", 4)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(h, "pa55word") || VerifyPassword(h, "nope") {
		t.Fatal("verify mismatch")
	}
}
