package database

import (
	"fmt"

	"davietech/config"
	"davietech/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres. Writes that need atomicity use explicit transactions,
// so gorm's implicit per-statement transaction is skipped.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect db: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the storefront tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Offer{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.PendingPayment{},
	)
}
