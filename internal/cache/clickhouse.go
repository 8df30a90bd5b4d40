package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

const activityTable = "futarchy_activity"

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore appends executed deposits and swaps to an audit table.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &ClickHouseStore{conn: conn, logger: cfg.Logger}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")
	return s, nil
}

func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + activityTable + ` (
			id String,
			kind LowCardinality(String),
			signature String,
			wallet String,
			subject String,
			branch LowCardinality(String),
			token_in LowCardinality(String),
			token_out LowCardinality(String),
			amount String,
			amount_raw UInt64,
			success UInt8,
			error String,
			duration_ms Int64,
			executed_at DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (wallet, executed_at)
	`
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", activityTable, err)
	}
	return nil
}

// Record inserts one activity row.
func (c *ClickHouseStore) Record(ctx context.Context, ev Event) error {
	query := `
		INSERT INTO ` + activityTable + ` (
			id, kind, signature, wallet, subject, branch, token_in, token_out,
			amount, amount_raw, success, error, duration_ms, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var success uint8
	if ev.Success {
		success = 1
	}

	err := c.conn.Exec(ctx, query,
		ev.ID,
		string(ev.Kind),
		ev.Signature,
		ev.Wallet,
		ev.Subject,
		ev.Branch,
		ev.TokenIn,
		ev.TokenOut,
		ev.Amount,
		ev.AmountRaw,
		success,
		ev.Error,
		ev.Duration.Milliseconds(),
		ev.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
