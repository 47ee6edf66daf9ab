package persistence

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/infrastructure/config"
	"github.com/rentdesk/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSQLiteDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: ":memory:",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDatabase(t *testing.T) {
	t.Run("unsupported driver", func(t *testing.T) {
		_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported database driver "mysql"`)
	})

	t.Run("sqlite serializes connections", func(t *testing.T) {
		db := newSQLiteDatabase(t)
		assert.Equal(t, "sqlite", db.Driver())
		require.NoError(t, db.Ping())

		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
	})
}

func TestDatabase_AutoMigrate(t *testing.T) {
	db := newSQLiteDatabase(t)
	require.NoError(t, db.AutoMigrate())

	for _, model := range []any{
		&models.PropertyModel{},
		&models.UnitModel{},
		&models.TenantModel{},
		&models.RentalContractModel{},
		&models.ContractChequeModel{},
	} {
		assert.True(t, db.DB.Migrator().HasTable(model), "%T", model)
	}
}

func TestDatabase_Transaction(t *testing.T) {
	db := newSQLiteDatabase(t)
	require.NoError(t, db.AutoMigrate())
	orgID := uuid.New()

	tenant := func(name string) *models.TenantModel {
		m := &models.TenantModel{Name: name}
		m.ID = uuid.New()
		m.OrgID = orgID
		return m
	}

	errAbort := errors.New("abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(tenant("Rolled Back")).Error)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(tenant("Committed")).Error
	}))

	var names []string
	require.NoError(t, db.DB.Model(&models.TenantModel{}).Scopes(OrgScope(orgID)).Pluck("name", &names).Error)
	assert.Equal(t, []string{"Committed"}, names)
}

func TestOrgScope(t *testing.T) {
	t.Run("nil org panics", func(t *testing.T) {
		assert.Panics(t, func() { OrgScope(uuid.Nil) })
	})

	t.Run("filters other organizations", func(t *testing.T) {
		db := setupRentalTestDB(t)
		mine, theirs := uuid.New(), uuid.New()
		newSeed(t, db, mine).tenant("Mine")
		newSeed(t, db, theirs).tenant("Theirs")

		var rows []models.TenantModel
		require.NoError(t, db.Scopes(OrgScope(mine)).Find(&rows).Error)
		require.Len(t, rows, 1)
		assert.Equal(t, "Mine", rows[0].Name)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping())
}
