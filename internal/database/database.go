package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormConfig is shared by Connect and the test helpers so timestamps are
// always written in UTC.
func GormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SQLiteDSN appends the connection pragmas the store relies on.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Warn
	if cfg.SSLMode == "disable" && !cfg.IsSQLite() {
		gormLogger = logger.Info
	}

	var dialector gorm.Dialector
	switch {
	case cfg.IsSQLite():
		dialector = sqlite.Open(SQLiteDSN(cfg.Path))
	case cfg.Driver == "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, GormConfig(gormLogger))
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	if cfg.IsSQLite() {
		// Single writer: the pool serializes every statement.
		sqlDB.SetMaxOpenConns(1)
		log.Info("connected to database", "driver", "sqlite", "path", cfg.Path)
		return db, nil
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to database", "driver", "postgres", "host", cfg.Host, "database", cfg.Name)

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// EnsureSuperAdmin creates the configured super admin, or resets an existing
// account with that username to an active super admin with the configured
// password. An empty password disables the bootstrap.
func EnsureSuperAdmin(ctx context.Context, db *gorm.DB, cfg *config.SuperAdminConfig, log *slog.Logger) error {
	if cfg.Username == "" || cfg.Password == "" {
		log.Debug("super admin bootstrap skipped")
		return nil
	}

	hash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("hashing super admin password: %w", err)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", cfg.Username).First(&existing).Error
	switch {
	case err == nil:
		if err := db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"password_hash": hash,
			"email":         cfg.Email,
			"role":          models.RoleSuperAdmin,
			"is_active":     true,
		}).Error; err != nil {
			return fmt.Errorf("updating super admin: %w", err)
		}
		log.Info("super admin updated", "username", cfg.Username)
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("looking up super admin: %w", err)
	}

	user := models.User{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return fmt.Errorf("creating super admin: %w", err)
	}

	log.Info("super admin created", "username", user.Username)
	return nil
}
