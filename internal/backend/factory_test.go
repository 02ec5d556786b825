package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocks/internal/config"
	"blocks/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{StoreBackend: "sheets"})
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{StoreBackend: "sqlite", SQLiteDBPath: "/tmp/x.db"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "/tmp/x.db", cfg.SQLiteDBPath)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: "bogus"}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func TestCreateBackend(t *testing.T) {
	f := NewFactory(nil)

	tests := []struct {
		name   string
		config Config
		want   any
	}{
		{name: "memory", config: Config{Type: MemoryBackend}, want: &storage.MemoryStore{}},
		{name: "sqlite", config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "blocks.db")}, want: &storage.SQLiteRepository{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(context.Background(), tt.config)
			require.NoError(t, err)
			require.NotNil(t, res.Store)
			assert.IsType(t, tt.want, res.Store)

			ws, err := res.Store.Begin(context.Background())
			require.NoError(t, err)
			assert.Empty(t, ws.Categories())
			ws.Discard()

			require.NotNil(t, res.Cleanup)
			assert.NoError(t, res.Cleanup())
		})
	}
}

func TestCreateBackendInvalid(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "bogus"})
	assert.Error(t, err)
}
