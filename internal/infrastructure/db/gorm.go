package db

import (
	"context"
	"errors"
	"time"

	"zkloan/internal/domain/event"
	"zkloan/internal/domain/loan"
	"zkloan/internal/domain/payout"
	"zkloan/internal/domain/pool"
	"zkloan/internal/domain/proof"
	"zkloan/pkg/amount"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenGorm(dsn string) (*gorm.DB, error) {
	return OpenGormWithDialector(mysql.Open(dsn))
}

// OpenGormWithDialector opens, tunes and pings the pool. TranslateError is
// required: the replay ledger detects reuse through gorm.ErrDuplicatedKey.
func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		TranslateError:       true,
		DisableAutomaticPing: true,
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema and seeds the pool singleton.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&loan.Loan{},
		&proof.UsedProof{},
		&pool.State{},
		&event.Event{},
		&payout.Payout{},
	); err != nil {
		return err
	}
	seed := pool.State{ID: pool.SingletonID, TotalValueLocked: amount.Zero(), Liquidity: amount.Zero()}
	res := db.WithContext(ctx).Where("id = ?", pool.SingletonID).FirstOrCreate(&seed)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return res.Error
	}
	return nil
}
