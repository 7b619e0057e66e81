// Package graph sends rendered Cypher statements to a Neo4j compatible server
// over Bolt and turns the returned records into alias sets.
package graph

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/orneryd/cypherkit/pkg/config"
	"github.com/orneryd/cypherkit/pkg/cypher"
	"github.com/orneryd/cypherkit/pkg/logging"
)

const (
	connectAttempts  = 5
	connectBaseDelay = 100 * time.Millisecond
)

// Executor is the part of the client that sync and schema code depends on.
type Executor interface {
	// Cypher renders r, runs it and returns the parsed result.
	Cypher(ctx context.Context, r cypher.Renderer) (*Result, error)
	// Transaction renders every statement, then runs them in one transaction.
	Transaction(ctx context.Context, rs ...cypher.Renderer) error
}

// Config holds the client settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	MaxConnectionPoolSize   int
	ConnectionTimeout       time.Duration
	MaxTransactionRetryTime time.Duration

	// QueryLog logs each statement at debug level.
	QueryLog bool
	// SlowQueryThreshold logs slower statements at warn level. Zero disables.
	SlowQueryThreshold time.Duration
}

// ConfigFrom maps loaded configuration onto client settings.
func ConfigFrom(conn config.ConnectionConfig, log config.LoggingConfig) Config {
	return Config{
		URI:                     conn.URI(),
		Username:                conn.User,
		Password:                conn.Pass,
		Database:                conn.Database,
		MaxConnectionPoolSize:   conn.MaxConnectionPoolSize,
		ConnectionTimeout:       conn.ConnectionTimeout,
		MaxTransactionRetryTime: conn.MaxTransactionRetryTime,
		QueryLog:                log.QueryLogEnabled,
		SlowQueryThreshold:      log.SlowQueryThreshold,
	}
}

// Validate checks the settings New depends on.
func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("uri is required: %w", ErrInvalidConfig)
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection timeout must be positive: %w", ErrInvalidConfig)
	}
	return nil
}

// Client runs statements against one database.
type Client struct {
	config  Config
	logger  *zap.Logger
	metrics *Metrics

	mu     sync.RWMutex
	driver neo4j.DriverWithContext
}

var _ Executor = (*Client)(nil)

// New creates a client. It must be connected via Connect before use.
// logger and metrics may be nil.
func New(cfg Config, logger *zap.Logger, metrics *Metrics) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config:  cfg,
		logger:  logging.OrNop(logger).Named("graph"),
		metrics: metrics,
	}, nil
}

// Connect creates the driver and verifies connectivity, retrying with
// exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	auth := neo4j.NoAuth()
	if c.config.Username != "" {
		auth = neo4j.BasicAuth(c.config.Username, c.config.Password, "")
	}

	driverConfig := func(dc *neo4j.Config) {
		if c.config.MaxConnectionPoolSize > 0 {
			dc.MaxConnectionPoolSize = c.config.MaxConnectionPoolSize
		}
		dc.ConnectionAcquisitionTimeout = c.config.ConnectionTimeout
		if c.config.MaxTransactionRetryTime > 0 {
			dc.MaxTransactionRetryTime = c.config.MaxTransactionRetryTime
		}
	}

	var lastErr error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		driver, err := neo4j.NewDriverWithContext(c.config.URI, auth, driverConfig)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				c.mu.Lock()
				c.driver = driver
				c.mu.Unlock()
				c.logger.Info("connected", zap.String("uri", c.config.URI), zap.Int("attempt", attempt+1))
				return nil
			}
			_ = driver.Close(ctx)
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("%w: connection attempt cancelled: %w", ErrConnectionFailed, ctx.Err())
		}

		delay := connectBaseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.ConnectionTimeout {
			delay = c.config.ConnectionTimeout
		}
		c.logger.Warn("connect attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: connection attempt cancelled: %w", ErrConnectionFailed, ctx.Err())
		}
	}

	return fmt.Errorf("%w: failed after %d attempts: %w", ErrConnectionFailed, connectAttempts, lastErr)
}

// Close releases the driver. Closing an unconnected client is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	if err != nil {
		return fmt.Errorf("failed to close driver: %w", err)
	}
	return nil
}

// Cypher renders r and runs it in a write transaction.
func (c *Client) Cypher(ctx context.Context, r cypher.Renderer) (*Result, error) {
	stmt, err := r.Build()
	if err != nil {
		return nil, err
	}
	return c.run(ctx, stmt)
}

// Run sends hand-written Cypher.
func (c *Client) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	return c.Cypher(ctx, cypher.Raw(query, params))
}

func (c *Client) run(ctx context.Context, stmt *cypher.Statement) (*Result, error) {
	driver, err := c.currentDriver()
	if err != nil {
		return nil, err
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.config.Database,
	})
	defer session.Close(ctx)

	start := time.Now()
	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, stmt.Query, stmt.Params)
		if err != nil {
			return nil, err
		}
		keys, err := res.Keys()
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([][]any, len(records))
		for i, rec := range records {
			rows[i] = rec.Values
		}
		return ParseRecords(keys, rows), nil
	})
	c.metrics.observe(KindStatement, start, err)
	c.logStatement(stmt, time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatementFailed, err)
	}
	return out.(*Result), nil
}

// Transaction renders every statement first, so a render error aborts before
// anything is sent. The statements then run in order inside one explicit
// transaction which is rolled back on the first failure.
func (c *Client) Transaction(ctx context.Context, rs ...cypher.Renderer) error {
	stmts := make([]*cypher.Statement, 0, len(rs))
	for i, r := range rs {
		stmt, err := r.Build()
		if err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
		stmts = append(stmts, stmt)
	}
	if len(stmts) == 0 {
		return nil
	}

	driver, err := c.currentDriver()
	if err != nil {
		return err
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.config.Database,
	})
	defer session.Close(ctx)

	start := time.Now()
	err = c.runTransaction(ctx, session, stmts)
	c.metrics.observe(KindTransaction, start, err)
	if err != nil {
		return err
	}
	c.logger.Debug("transaction committed",
		zap.Int("statements", len(stmts)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (c *Client) runTransaction(ctx context.Context, session neo4j.SessionWithContext, stmts []*cypher.Statement) error {
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrStatementFailed, err)
	}

	for i, stmt := range stmts {
		stmtStart := time.Now()
		res, err := tx.Run(ctx, stmt.Query, stmt.Params)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		c.logStatement(stmt, time.Since(stmtStart), err)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				c.logger.Error("rollback failed", zap.Error(rbErr))
			}
			return fmt.Errorf("%w: statement %d: %w", ErrStatementFailed, i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStatementFailed, err)
	}
	return nil
}

func (c *Client) currentDriver() (neo4j.DriverWithContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.driver == nil {
		return nil, ErrNotConnected
	}
	return c.driver, nil
}

func (c *Client) logStatement(stmt *cypher.Statement, took time.Duration, err error) {
	switch {
	case err != nil:
		c.logger.Warn("statement failed",
			zap.String("query", stmt.Query),
			zap.Duration("duration", took),
			zap.Error(err))
	case c.config.SlowQueryThreshold > 0 && took > c.config.SlowQueryThreshold:
		c.logger.Warn("slow statement",
			zap.String("query", stmt.Query),
			zap.Duration("duration", took))
	case c.config.QueryLog:
		c.logger.Debug("statement",
			zap.String("query", stmt.Query),
			zap.Int("params", len(stmt.Params)),
			zap.Duration("duration", took))
	}
}
