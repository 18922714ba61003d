package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/renameio/v2"
	"github.com/stretchr/testify/require"
)

func TestUntilChangedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 1\n"), 0o644))

	w, err := New(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0o644))

	select {
	case <-w.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("change not reported")
	}
	require.NoError(t, w.Err())
}

func TestUntilChangedAtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 1\n"), 0o644))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- UntilChanged(ctx, path)
	}()

	// Keep replacing until the watcher has been installed and reacts
	var got error
	require.Eventually(t, func() bool {
		_ = renameio.WriteFile(path, []byte("workers: 3\n"), 0o644)
		select {
		case got = <-done:
			return true
		default:
			return false
		}
	}, 4*time.Second, 200*time.Millisecond)
	require.NoError(t, got)
}

func TestUntilChangedIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	w, err := New(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b"), 0o644))

	select {
	case <-w.Changed():
		t.Fatal("sibling write reported as change")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUntilChangedCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, UntilChanged(ctx, path), context.Canceled)
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "config.yaml"), 0)
	require.Error(t, err)
}
