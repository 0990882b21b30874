package migrate

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fooddash-backend/pkg/config"
	"github.com/angelmondragon/fooddash-backend/pkg/db"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
)

func TestMaybeRunDevBuildsSQLiteSchema(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{SQLitePath: filepath.Join(t.TempDir(), "dev.db")},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true, AutoMigrate: true},
	}

	client, err := db.New(context.Background(), cfg.DB, true, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, MaybeRunDev(context.Background(), cfg, logg, client))
	for _, table := range []string{"orders", "wallets", "wallet_transactions", "wallet_topups", "notifications"} {
		assert.True(t, client.DB().Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}
	assert.NoError(t, MaybeRunDev(context.Background(), cfg, logger.New(logger.Options{Output: io.Discard}), nil))
}
