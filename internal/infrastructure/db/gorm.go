package db

import (
	"fmt"
	"log/slog"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/loanrequest"
	"tuition-escrow/internal/domain/offer"
	"tuition-escrow/internal/domain/repayment"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects using driver ("mysql" or "sqlite") and dsn.
func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	switch driver {
	case DriverMySQL:
		return open(mysql.Open(dsn), level, 30)
	case DriverSQLite:
		// sqlite serialises writers; one connection avoids SQLITE_BUSY under concurrent handlers
		return open(sqlite.Open(dsn), level, 1)
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// OpenGormWithDialector opens gorm on an existing dialector, for tests and tools.
func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	return open(dial, logger.Warn, 30)
}

func open(dial gorm.Dialector, level logger.LogLevel, maxOpen int) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(10, maxOpen))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	slog.Info("gorm: connected", "dialect", dial.Name())
	return db, nil
}

// Models lists every persisted entity, in dependency order.
func Models() []any {
	return []any{
		&loanrequest.LoanRequest{},
		&loanrequest.Installment{},
		&offer.Offer{},
		&agreement.Agreement{},
		&agreement.Installment{},
		&repayment.Repayment{},
		&repayment.Cursor{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// LogLevel maps a config string onto gorm's levels; unknown values mean warn.
func LogLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}
