package persistence

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/infrastructure/config"
	"github.com/rentdesk/backend/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB     *gorm.DB
	driver string
}

// NewDatabase opens the configured driver. A nil gormLogger keeps gorm silent.
func NewDatabase(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            cfg.Driver == "postgres",
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite serializes writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, driver: cfg.Driver}, nil
}

// Driver returns the configured driver name
func (d *Database) Driver() string {
	return d.driver
}

// AutoMigrate creates the rental tables from the gorm models.
// Postgres deployments use the SQL migrations instead.
func (d *Database) AutoMigrate() error {
	return AutoMigrate(d.DB)
}

// openContractIndexes mirror migrations/000003 for databases built by AutoMigrate.
// Partial index predicates cannot take bind parameters.
var openContractIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_rental_contracts_open_unit
		ON rental_contracts (org_id, unit_id)
		WHERE unit_id IS NOT NULL AND state IN (%s)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_rental_contracts_open_unitless
		ON rental_contracts (org_id, property_id)
		WHERE unit_id IS NULL AND state IN (%s)`,
}

// AutoMigrate creates the rental tables on db
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.PropertyModel{},
		&models.UnitModel{},
		&models.TenantModel{},
		&models.RentalContractModel{},
		&models.ContractChequeModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate rental tables: %w", err)
	}
	states := openStateList()
	for _, stmt := range openContractIndexes {
		if err := db.Exec(fmt.Sprintf(stmt, states)).Error; err != nil {
			return fmt.Errorf("failed to create open contract index: %w", err)
		}
	}
	return nil
}

func openStateList() string {
	quoted := make([]string, 0, len(rental.OpenContractStates))
	for _, s := range rental.OpenContractStates {
		quoted = append(quoted, "'"+string(s)+"'")
	}
	return strings.Join(quoted, ", ")
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}

// OrgScope restricts a query to one organization.
// Panics on the zero id so an unscoped query cannot leak across organizations.
func OrgScope(orgID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	if orgID == uuid.Nil {
		panic("OrgScope called with nil org ID - this is a programming error")
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("org_id = ?", orgID)
	}
}
