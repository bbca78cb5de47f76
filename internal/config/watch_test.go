package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchRequiresLoadedFile(t *testing.T) {
	m := NewManager()
	assert.ErrorIs(t, m.Watch(context.Background()), ErrNoConfigFile)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avinput.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter:\n  max_sessions: 4\n"), 0o644))

	m := NewManager()
	require.NoError(t, m.LoadFromFile(path))
	require.Equal(t, 4, m.Get().Adapter.MaxSessions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Watch(ctx)
	}()

	// Give the watcher a moment to arm before rewriting the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("adapter:\n  max_sessions: 8\n"), 0o644))

	assert.Eventually(t, func() bool {
		return m.Get().Adapter.MaxSessions == 8
	}, 3*time.Second, 25*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
