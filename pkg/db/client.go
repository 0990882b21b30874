// Package db owns the gorm connection shared by repositories and the
// transaction helper services use to group writes.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/fooddash-backend/pkg/config"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	sqliteParams  = "?_foreign_keys=on&_busy_timeout=5000"
	slowQueryWarn = 250 * time.Millisecond
)

type Client struct {
	conn *gorm.DB
}

func dialectorFor(cfg config.DBConfig, useSQLite bool) (gorm.Dialector, error) {
	if useSQLite {
		if cfg.SQLitePath == "" {
			return nil, errors.New("sqlite path is required")
		}
		return sqlite.Open(cfg.SQLitePath + sqliteParams), nil
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
}

// New opens Postgres, or the local SQLite file when useSQLite is set.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	dialector, err := dialectorFor(cfg, useSQLite)
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, gormConfig(logg))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if useSQLite {
		// one writer at a time; a single connection keeps FOR UPDATE meaningful
		maxOpen, maxIdle = 1, 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"driver": dialector.Name(), "max_open_conns": maxOpen}), "database connection established")
	}
	return &Client{conn: conn}, nil
}

func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

// gormConfig routes slow queries and driver errors to the app logger and
// drops everything else.
func gormConfig(logg *logger.Logger) *gorm.Config {
	level := gormlogger.Silent
	var w gormlogger.Writer = discardWriter{}
	if logg != nil {
		level = gormlogger.Warn
		w = gormWriter{logg: logg}
	}
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(w, gormlogger.Config{
			SlowThreshold:             slowQueryWarn,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

type gormWriter struct {
	logg *logger.Logger
}

func (g gormWriter) Printf(format string, args ...any) {
	g.logg.Warn(context.Background(), "gorm: "+fmt.Sprintf(format, args...))
}

type discardWriter struct{}

func (discardWriter) Printf(string, ...any) {}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in one transaction. An error or panic from fn rolls back;
// the panic is re-raised after rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
