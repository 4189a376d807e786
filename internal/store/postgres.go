package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"hvacsched/internal/config"
	"hvacsched/internal/model"
)

// Postgres keeps the document as a jsonb row keyed by name.
type Postgres struct {
	db     *sql.DB
	table  string
	key    string
	logger *zap.Logger
}

// OpenPostgres connects, pings and ensures the document table exists.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, key string, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store: postgres dsn is empty")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: postgres open: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: postgres ping: %w", err)
	}

	p := NewPostgres(db, cfg.Table, key, logger)
	if err := p.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgres(db *sql.DB, table, key string, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, table: pq.QuoteIdentifier(table), key: key, logger: logger}
}

// Migrate creates the document table if needed.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS ` + p.table + ` (
		key varchar(255) PRIMARY KEY,
		body jsonb NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("store: create table %s: %w", p.table, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context) (model.Document, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM `+p.table+` WHERE key = $1`, p.key).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, fmt.Errorf("store: select document: %w", err)
	}
	return decode(body, "postgres key "+p.key)
}

func (p *Postgres) Save(ctx context.Context, doc model.Document) error {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO `+p.table+` (key, body, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		p.key, data)
	if err != nil {
		return fmt.Errorf("store: upsert document: %w", err)
	}
	p.logger.Debug("schedule document written", zap.String("key", p.key), zap.Int("schedules", len(doc.Schedules)))
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
