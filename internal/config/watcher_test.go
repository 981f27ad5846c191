// internal/config/watcher_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/valpere/BrandLocator/internal/utils"
)

func TestConfigWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  timeout: 5s\n"), 0644))

	cw, err := NewConfigWatcher(path, utils.NewNopLogger())
	require.NoError(t, err)
	defer cw.Close()

	reloaded := make(chan *Config, 1)
	cw.OnConfigChange(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("http:\n  timeout: 7s\n"), 0644))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 7*time.Second, cfg.HTTP.Timeout)
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestFileWatcherCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	fw, err := NewFileWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	require.NoError(t, fw.Close())
}
