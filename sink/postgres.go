package sink

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lcx/logrelay/record"
)

// PostgresSink inserts records into a PostgreSQL table, one row per
// record. The table is created on first use if it does not exist.
type PostgresSink struct {
	name  string
	db    *sql.DB
	table string
	stmt  *sql.Stmt
}

// PostgresSinkConfig configures a Postgres sink.
type PostgresSinkConfig struct {
	// URL is a lib/pq connection string.
	URL   string `mapstructure:"url"`
	Table string `mapstructure:"table"`

	MaxOpenConns   int `mapstructure:"maxOpenConns"`
	MaxIdleConns   int `mapstructure:"maxIdleConns"`
	ConnMaxLifeSec int `mapstructure:"connMaxLifeSec"`
}

// NewPostgresSink opens the database, ensures the target table exists
// and prepares the insert statement.
func NewPostgresSink(name string, cfg PostgresSinkConfig) (*PostgresSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres sink: url is empty")
	}
	table := cfg.Table
	if table == "" {
		table = "log_records"
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeSec) * time.Second)
	}

	s := &PostgresSink{name: name, db: db, table: table}
	if err := s.ensureTable(); err != nil {
		db.Close()
		return nil, err
	}

	stmt, err := db.Prepare(`INSERT INTO ` + table +
		` (id, logged_at, level, message, payload) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert for table %s: %w", table, err)
	}
	s.stmt = stmt

	return s, nil
}

func (s *PostgresSink) ensureTable() error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)`, s.table).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check table %s: %w", s.table, err)
	}
	if exists {
		return nil
	}

	_, err = s.db.Exec(`CREATE TABLE ` + s.table + ` (
		id UUID PRIMARY KEY,
		logged_at TIMESTAMP NOT NULL,
		level TEXT NOT NULL,
		message TEXT,
		payload TEXT
	)`)
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Name implements Sink.
func (s *PostgresSink) Name() string {
	return s.name
}

// Deliver inserts one row. The full encoded record is stored alongside
// the extracted columns so structured fields survive in the payload.
func (s *PostgresSink) Deliver(rec *record.Record) error {
	_, err := s.stmt.Exec(rec.ID.String(), rec.Time, rec.Level.String(), rec.Msg, string(rec.Bytes()))
	return err
}

// Close releases the prepared statement and the connection pool.
func (s *PostgresSink) Close() error {
	var errs []error
	if s.stmt != nil {
		if err := s.stmt.Close(); err != nil {
			errs = append(errs, err)
		}
		s.stmt = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		s.db = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("postgres sink close: %v", errs)
	}
	return nil
}
