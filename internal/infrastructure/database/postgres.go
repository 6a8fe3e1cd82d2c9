package database

import (
	"fmt"
	"log"

	"github.com/sagikoren/agencyops-api/internal/config"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Warn

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Map driver unique violations onto gorm.ErrDuplicatedKey; the payment
		// repository depends on this to detect period collisions.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB to set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Println("Successfully connected to PostgreSQL database")
	return db, nil
}

// AutoMigrate runs GORM auto-migration for all entities
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		// Tenancy
		&entity.Tenant{},
		&entity.TenantMembership{},

		// Directory
		&entity.Client{},

		// Catalog
		&entity.Item{},
		&entity.Product{},
		&entity.ProductItem{},
		&entity.ProductPredefinedTask{},

		// Quote-to-cash
		&entity.Quote{},
		&entity.QuoteLineItem{},
		&entity.QuoteSequence{},
		&entity.Retainer{},
		&entity.OneTimePayment{},
		&entity.PaymentSettings{},

		// System entities
		&entity.IdempotencyKey{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}
