package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessaro/memopipe/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// The mcp command keeps serving with per-call tool errors when the store
// cannot be opened. That fallback branches on st != nil, so a failed open
// must yield a nil interface, not an interface wrapping a typed nil.
func TestNewStoreOpenFailureReturnsNilInterface(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	prev := cfg
	cfg = &config.Config{Store: config.StoreConfig{
		Path: filepath.Join(blocker, "memories.db"),
	}}
	t.Cleanup(func() { cfg = prev })

	st, err := newStore(testLogger())
	require.Error(t, err)
	assert.True(t, st == nil, "interface must compare equal to nil on open failure")
}

func TestNewStoreOpensAndCloses(t *testing.T) {
	prev := cfg
	cfg = &config.Config{Store: config.StoreConfig{
		Path: filepath.Join(t.TempDir(), "memories.db"),
	}}
	t.Cleanup(func() { cfg = prev })

	st, err := newStore(testLogger())
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.NoError(t, st.Close())
}
