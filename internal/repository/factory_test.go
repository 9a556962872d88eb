package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panda-miner/pkg/config"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		dbType string
		name   string
	}{
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"mysql", "mysql"},
		{"sqlite", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			d, err := Dialector(&config.DatabaseConfig{Type: tt.dbType, Host: "localhost", Database: "panda.db"})
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}

	_, err := Dialector(&config.DatabaseConfig{Type: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestRepositories(t *testing.T) {
	db := setupTestDB(t)
	repos := NewRepositories(db, "1.0.0")

	require.NotNil(t, repos)
	assert.NotNil(t, repos.Task)
	assert.NotNil(t, repos.Result)
	assert.Equal(t, db, repos.GormDB())
	assert.NotNil(t, repos.DB())
	assert.NoError(t, repos.HealthCheck(context.Background()))
	assert.NoError(t, repos.Close())
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable(&MiningTaskRecord{}))
	assert.True(t, db.Migrator().HasTable("mining_results"))
}
