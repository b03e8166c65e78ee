package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second

	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

var errMissingDatabase = errors.New("database handle is required")

// Connector recreates the underlying connection pool after connection-class failures.
type Connector interface {
	Connect() (*gorm.DB, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func() (*gorm.DB, error)

func (f ConnectorFunc) Connect() (*gorm.DB, error) {
	return f()
}

type ExecutorConfig struct {
	Database    *gorm.DB
	Connector   Connector
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *zap.Logger
	Sleep       func(ctx context.Context, delay time.Duration) error
}

// Executor runs store operations with bounded retries, swapping in a fresh
// connection pool when a failure indicates the connection itself is gone.
// It is safe for concurrent use.
type Executor struct {
	mu          sync.RWMutex
	db          *gorm.DB
	connector   Connector
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
	sleep       func(ctx context.Context, delay time.Duration) error
}

func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Executor{
		db:          cfg.Database,
		connector:   cfg.Connector,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger,
		sleep:       sleep,
	}, nil
}

// DB returns the current connection pool.
func (e *Executor) DB() *gorm.DB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db
}

// Execute runs operation, retrying transient failures. Exhaustion returns the last error.
func (e *Executor) Execute(ctx context.Context, operation func(tx *gorm.DB) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		db := e.DB()
		err := operation(db.WithContext(ctx))
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return err
		}

		e.logger.Warn("database operation failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.maxAttempts),
			zap.Error(err))

		if IsConnectionError(err) {
			e.reconnect(db)
		}

		if attempt < e.maxAttempts {
			if sleepErr := e.sleep(ctx, e.retryDelay); sleepErr != nil {
				return lastErr
			}
		}
	}
	return fmt.Errorf("database: giving up after %d attempts: %w", e.maxAttempts, lastErr)
}

func (e *Executor) reconnect(stale *gorm.DB) {
	if e.connector == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != stale {
		return
	}

	e.logger.Warn("recreating database connection pool")
	fresh, err := e.connector.Connect()
	if err != nil {
		e.logger.Error("database reconnect failed", zap.Error(err))
		return
	}
	e.db = fresh

	if sqlDB, err := stale.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Close releases the current connection pool.
func (e *Executor) Close() error {
	sqlDB, err := e.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsConnectionError reports failures that mean the pool's connections are unusable.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysqldriver.ErrInvalidConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "sql: database is closed")
}

// IsTransient reports whether retrying the operation may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsConnectionError(err) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrLockWaitTimeout || mysqlErr.Number == mysqlErrDeadlock
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "deadlock detected")
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
