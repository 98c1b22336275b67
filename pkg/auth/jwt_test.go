package auth

import (
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def", "abc.def", false},
		{"bearer  abc ", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
	}
	for _, tt := range tests {
		got, err := ExtractToken(tt.header)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ExtractToken(%q) = %q, %v; want %q, err=%v", tt.header, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestJWTAuth_RoundTrip(t *testing.T) {
	a, err := NewJWTAuth("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewJWTAuth() error = %v", err)
	}

	token, err := a.IssueToken(Identity{ID: "key_123", Tier: "elevated", Kind: "api_key"})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	id, err := a.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if id.ID != "key_123" || id.Tier != "elevated" || id.Kind != "api_key" {
		t.Errorf("identity = %+v", id)
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	a, _ := NewJWTAuth("test-secret", time.Minute)
	other, _ := NewJWTAuth("other-secret", time.Minute)
	expired, _ := NewJWTAuth("test-secret", -time.Minute)

	wrongKey, _ := other.IssueToken(Identity{ID: "u1"})
	old, _ := expired.IssueToken(Identity{ID: "u1"})
	noSubject, _ := a.IssueToken(Identity{})

	for name, token := range map[string]string{
		"wrong key":  wrongKey,
		"expired":    old,
		"no subject": noSubject,
		"garbage":    "not-a-jwt",
	} {
		if _, err := a.VerifyToken(token); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNewJWTAuth_EmptySecret(t *testing.T) {
	if _, err := NewJWTAuth("", 0); err == nil {
		t.Error("expected error for empty secret")
	}
}
