package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"voiceauth/internal/database"
	"voiceauth/pkg/tokens"
)

func openTestStore(t *testing.T) *TokenStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTokenStore(db)
}

func TestCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	raw, err := s.Create(ctx, "login-service", "", true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !tokens.ValidateToken(raw) {
		t.Fatalf("created token fails format validation: %q", raw)
	}

	info, err := s.Lookup(ctx, raw)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if info.ClientName != "login-service" || !info.Trusted || info.Subject != "" {
		t.Errorf("unexpected token info: %+v", info)
	}

	// Lookup records usage.
	again, err := s.Lookup(ctx, raw)
	if err != nil {
		t.Fatalf("second Lookup failed: %v", err)
	}
	if again.LastUsedAt.IsZero() {
		t.Error("last-used time should be set after a prior lookup")
	}
}

func TestCreateSubjectBound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	raw, err := s.Create(ctx, "alice-device", "alice", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	info, err := s.Lookup(ctx, raw)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if info.Subject != "alice" || info.Trusted {
		t.Errorf("unexpected token info: %+v", info)
	}
}

func TestCreateRequiresClientName(t *testing.T) {
	if _, err := openTestStore(t).Create(context.Background(), "", "", false); err == nil {
		t.Error("empty client name should be rejected")
	}
}

func TestLookupUnknownToken(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	// Well-formed but never issued.
	unknown, err := tokens.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := s.Lookup(ctx, unknown); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("unknown token: got %v, want ErrUnknownToken", err)
	}

	// Malformed tokens never reach the database.
	if _, err := s.Lookup(ctx, "garbage"); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("malformed token: got %v, want ErrUnknownToken", err)
	}
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	raw, err := s.Create(ctx, "old-service", "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	info, err := s.Lookup(ctx, raw)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if err := s.Deactivate(ctx, info.TokenID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	if _, err := s.Lookup(ctx, raw); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("deactivated token: got %v, want ErrUnknownToken", err)
	}

	listed, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, l := range listed {
		if l.TokenID == info.TokenID {
			t.Error("deactivated token still listed")
		}
	}
}

func TestRawTokenNeverStored(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	s := NewTokenStore(db)

	raw, err := s.Create(ctx, "svc", "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var stored string
	if err := db.QueryRow("SELECT hashed_token FROM auth_tokens").Scan(&stored); err != nil {
		t.Fatalf("failed to read stored token: %v", err)
	}
	if stored == raw {
		t.Error("raw token must never be persisted")
	}
	if stored != tokens.HashToken(raw) {
		t.Error("stored value should be the sha256 digest of the raw token")
	}
}
