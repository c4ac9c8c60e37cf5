package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

const connectAttempts = 10

// MigratedModels are the tables AutoMigrate manages. Products and addresses
// belong to other services; they are included so a fresh development
// database has the foreign key targets.
var MigratedModels = []interface{}{
	&models.Product{},
	&models.Address{},
	&models.CartItem{},
	&models.Order{},
	&models.OrderItem{},
	&models.OrderPayment{},
}

// ConnectPostgres opens the pool, retrying with a growing backoff while the
// database comes up.
func ConnectPostgres(ctx context.Context, dsn string, autoMigrate bool, logger *zap.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			if err = ping(ctx, db); err != nil {
				_ = Close(db)
			}
		}
		if err == nil {
			break
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	logger.Info("Connected to PostgreSQL successfully")

	if autoMigrate {
		if err := db.AutoMigrate(MigratedModels...); err != nil {
			return nil, fmt.Errorf("AutoMigrate failed: %w", err)
		}
		logger.Info("Database schema migrated")
	}
	return db, nil
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
