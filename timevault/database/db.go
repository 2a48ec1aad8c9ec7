package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/timevault/timevault/timevault/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	defaultConnTimeout   = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
)

type DBConfig struct {
	Host         string `toml:"host" envconfig:"DB_HOST"`
	Port         int    `toml:"port" envconfig:"DB_PORT"`
	User         string `toml:"user" envconfig:"DB_USER"`
	Password     string `toml:"password" envconfig:"DB_PASSWORD"`
	Database     string `toml:"database" envconfig:"DB_DATABASE"`
	PoolSize     int    `toml:"pool_size" envconfig:"DB_POOL_SIZE"`
	MaxIdleConns int    `toml:"max_idle_conns" envconfig:"DB_MAX_IDLE_CONNS"`
	MaxLifetime  int    `toml:"max_lifetime" envconfig:"DB_MAX_LIFETIME"`
}

// DB holds both a pgx pool (raw SQL, health checks, DDL) and a bun handle
// (model queries). Both point at the same server.
type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	// Probe reachability before handing the DSN to the pool so startup
	// fails fast with a useful error.
	var conn net.Conn
	var err error

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	for i := 0; i < defaultMaxRetries; i++ {
		conn, err = net.DialTimeout("tcp", addr, defaultConnTimeout)
		if err == nil {
			break
		}
		time.Sleep(defaultRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("database server unreachable after %d attempts: %w", defaultMaxRetries, err)
	}
	conn.Close()

	poolConfig, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{pool: pool, bunDB: newBunDB(cfg)}, nil
}

func buildConnString(cfg DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}

func newBunDB(cfg DBConfig) *bun.DB {
	sslMode := os.Getenv("PG_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) ExecWithLog(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	start := time.Now()
	result, err := db.pool.Exec(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "exec"),
			slog.String("query", sql),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return result, err
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "exec"),
		slog.String("query", sql),
		slog.Duration("took", duration),
		slog.Int64("affected_rows", result.RowsAffected()),
	)
	return result, nil
}

func (db *DB) QueryWithLog(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	start := time.Now()
	rows, err := db.pool.Query(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "query"),
			slog.String("query", sql),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return rows, err
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "query"),
		slog.String("query", sql),
		slog.Duration("took", duration),
	)
	return rows, nil
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

// Ping verifies both database handles are working.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgxpool ping failed: %w", err)
	}
	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("bun ping failed: %w", err)
	}
	return nil
}

// InitializeSchema creates all required tables and indexes.
func (db *DB) InitializeSchema(ctx context.Context) error {
	// Order matters for foreign key references.
	tables := []interface{}{
		(*models.Account)(nil),
		(*models.PrintBatch)(nil),
		(*models.Card)(nil),
		(*models.ActivityLogEntry)(nil),
		(*models.Redemption)(nil),
		(*models.RedemptionCard)(nil),
		(*models.TimeLedgerEntry)(nil),
		(*models.SupportTicket)(nil),
	}

	for _, model := range tables {
		_, err := db.bunDB.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_code_lower ON cards(LOWER(code));",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_claim_token ON cards(claim_token);",
		"CREATE INDEX IF NOT EXISTS idx_cards_owner_id ON cards(owner_id) WHERE owner_id IS NOT NULL;",
		"CREATE INDEX IF NOT EXISTS idx_cards_redemption_status ON cards(redemption_status) WHERE redemption_status <> 'none';",
		"CREATE INDEX IF NOT EXISTS idx_cards_batch_id ON cards(batch_id);",
		"CREATE INDEX IF NOT EXISTS idx_activity_log_card ON activity_log(card_id, created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_activity_log_account ON activity_log(account_id, created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_redemptions_status ON redemptions(status) WHERE status = 'pending';",
		"CREATE INDEX IF NOT EXISTS idx_redemptions_account ON redemptions(account_id);",
		"CREATE INDEX IF NOT EXISTS idx_redemption_cards_redemption ON redemption_cards(redemption_id);",
		"CREATE INDEX IF NOT EXISTS idx_redemption_cards_card ON redemption_cards(card_id);",
		"CREATE INDEX IF NOT EXISTS idx_time_ledger_account ON time_ledger(account_id, created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_support_tickets_account ON support_tickets(account_id);",
		"CREATE INDEX IF NOT EXISTS idx_support_tickets_open ON support_tickets(status) WHERE status = 'open';",
	}

	for _, idx := range indexes {
		if _, err := db.ExecWithLog(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
