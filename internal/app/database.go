package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/config"
)

// getDatabase opens the application database. sqlite is the default and
// keeps everything under the workdir; postgres is for shared deployments.
func getDatabase(cfg config.DatabaseConfig, workdir string) *gorm.DB {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(level),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		db, err = gorm.Open(postgres.New(postgres.Config{DSN: dsn}), gormCfg)
	default:
		dir := filepath.Join(workdir, "data")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			zap.S().Panicf("failed to create data dir: %v", err)
		}
		path := filepath.Join(dir, cfg.Name+".db")
		db, err = gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?_foreign_keys=on", path)), gormCfg)
	}
	if err != nil {
		zap.S().Panicf("failed to connect %s database: %v", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Panicf("failed to get database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConn)
	sqlDB.SetMaxIdleConns(cfg.MaxConn / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db
}
