// Package testutil provides shared test helpers for setting up vaults
// and sessions.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/othala/internal/session"
	"github.com/starford/othala/internal/storage"
)

// Logger returns a test logger that only surfaces errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestVault creates a temporary vault directory with an initialized
// Local backend, both cleaned up with the test.
func TestVault(t *testing.T) (string, *storage.Local) {
	t.Helper()
	vaultDir := t.TempDir()
	local := storage.NewLocal(vaultDir)
	t.Cleanup(func() { local.Close() })

	if err := local.Initialize(context.Background(), vaultDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return vaultDir, local
}

// TestSession creates a loaded session over a temporary local vault.
func TestSession(t *testing.T, opts ...session.Option) *session.Session {
	t.Helper()
	vaultDir, local := TestVault(t)

	base := []session.Option{session.WithLogger(Logger())}
	sess := session.New(local, vaultDir, append(base, opts...)...)
	t.Cleanup(sess.Close)
	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return sess
}
