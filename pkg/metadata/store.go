package metadata

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/petrsabatka/hw-backend-functions/pkg/config"
)

// Open connects to the catalog store. Default transactions are skipped so
// every statement runs in autocommit mode; the audit trail must not be rolled
// back together with a failing step.
func Open(cfg config.MetadataStoreConfig, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("connecting to metadata store", "dsn", cfg.MaskedDSN())

	dsn := cfg.DSN()
	if cfg.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cfg.Schema)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to metadata store: %w", err)
	}
	return db, nil
}

// Close releases the underlying catalog store connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
