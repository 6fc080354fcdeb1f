package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestAutoMigrateAndGlobalDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), gormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable("notifications"))
	assert.True(t, db.Migrator().HasIndex("notifications", "idx_notifications_recipient"))

	SetDB(nil)
	assert.False(t, IsConnected())

	SetDB(db)
	t.Cleanup(func() { SetDB(nil) })
	assert.Same(t, db, GetDB())
	assert.True(t, IsConnected())

	assert.NoError(t, Close(nil))
}
