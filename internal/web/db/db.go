package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/foxzi/mailtarget/internal/web/config"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type DB struct {
	*sql.DB
	Driver string
}

// New opens the database described by cfg
func New(cfg config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return Open(DriverPostgres, cfg.DSN)
	case DriverSQLite, "":
		// Ensure directory exists
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		return Open(DriverSQLite, cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Open opens a database with an explicit driver and DSN
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// Every connection to :memory: is a separate database
		if dsn == ":memory:" {
			db.SetMaxOpenConns(1)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: db, Driver: driver}, nil
}

// Builder returns a statement builder using the placeholder format of the driver
func (db *DB) Builder() sq.StatementBuilderType {
	return Builder(db.Driver)
}

// Builder returns a statement builder for driver
func Builder(driver string) sq.StatementBuilderType {
	if driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (db *DB) Migrate() error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.Driver == DriverPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	migrations := []string{
		migrationMemberTypes,
		migrationMembers,
		migrationCategories,
		migrationCategoryMembers,
		migrationMailings,
		migrationMailingTargets,
		migrationMailingUnsubscribe,
	}

	for _, m := range migrations {
		if _, err := db.Exec(strings.ReplaceAll(m, "{{pk}}", pk)); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const migrationMemberTypes = `
CREATE TABLE IF NOT EXISTS member_types (
    id {{pk}},
    entity INTEGER NOT NULL DEFAULT 1,
    label TEXT NOT NULL,
    subscription BOOLEAN NOT NULL DEFAULT TRUE,
    status INTEGER NOT NULL DEFAULT 1
)`

const migrationMembers = `
CREATE TABLE IF NOT EXISTS members (
    id {{pk}},
    entity INTEGER NOT NULL DEFAULT 1,
    email TEXT,
    lastname TEXT NOT NULL DEFAULT '',
    firstname TEXT NOT NULL DEFAULT '',
    login TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT '',
    civility TEXT,
    status INTEGER NOT NULL DEFAULT -1,
    end_date TIMESTAMP,
    type_id INTEGER NOT NULL REFERENCES member_types(id),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

const migrationCategories = `
CREATE TABLE IF NOT EXISTS categories (
    id {{pk}},
    entity INTEGER NOT NULL DEFAULT 1,
    label TEXT NOT NULL,
    type INTEGER NOT NULL,
    visible BOOLEAN NOT NULL DEFAULT TRUE
)`

const migrationCategoryMembers = `
CREATE TABLE IF NOT EXISTS category_members (
    category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    member_id INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    PRIMARY KEY (category_id, member_id)
)`

const migrationMailings = `
CREATE TABLE IF NOT EXISTS mailings (
    id {{pk}},
    entity INTEGER NOT NULL DEFAULT 1,
    title TEXT NOT NULL,
    nb_emails INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

const migrationMailingTargets = `
CREATE TABLE IF NOT EXISTS mailing_targets (
    id {{pk}},
    mailing_id INTEGER NOT NULL REFERENCES mailings(id) ON DELETE CASCADE,
    contact_id INTEGER,
    lastname TEXT NOT NULL DEFAULT '',
    firstname TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL,
    other TEXT NOT NULL DEFAULT '',
    source_url TEXT NOT NULL DEFAULT '',
    source_id INTEGER,
    source_type TEXT NOT NULL DEFAULT '',
    tag TEXT NOT NULL,
    status INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(mailing_id, email)
)`

const migrationMailingUnsubscribe = `
CREATE TABLE IF NOT EXISTS mailing_unsubscribe (
    id {{pk}},
    entity INTEGER NOT NULL DEFAULT 1,
    email TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(entity, email)
)`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_members_entity_email ON members(entity, email)`,
	`CREATE INDEX IF NOT EXISTS idx_members_type ON members(type_id)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_entity_type ON categories(entity, type)`,
	`CREATE INDEX IF NOT EXISTS idx_mailing_targets_email ON mailing_targets(email)`,
}
