package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir holds the Postgres schema for orders, web orders, deliveries,
// the outbox and staff. SQLite installs bootstrap through gorm AutoMigrate.
const DefaultDir = "pkg/migrate/migrations"

// Step is one migration goose applied or rolled back.
type Step struct {
	Version   int64
	Path      string
	Direction string
}

// Migrator runs the cafepos schema migrations against one Postgres database.
type Migrator struct {
	provider *goose.Provider
}

func NewMigrator(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if err := ValidateDir(dir); err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: p}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]Step, error) {
	res, err := m.provider.Up(ctx)
	if err != nil {
		return steps(res), fmt.Errorf("goose up: %w", err)
	}
	return steps(res), nil
}

// Down rolls back the newest applied migration. Nothing applied is not an
// error; the returned slice is empty.
func (m *Migrator) Down(ctx context.Context) ([]Step, error) {
	res, err := m.provider.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return steps([]*goose.MigrationResult{res}), nil
}

// To moves the schema up or down until target is the newest applied version.
// target is a YYYYMMDDHHMMSS version; "0" rolls everything back.
func (m *Migrator) To(ctx context.Context, target string) ([]Step, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("current version: %w", err)
	}

	var res []*goose.MigrationResult
	switch {
	case version == current:
		return nil, nil
	case version > current:
		res, err = m.provider.UpTo(ctx, version)
	default:
		res, err = m.provider.DownTo(ctx, version)
	}
	if err != nil {
		return steps(res), fmt.Errorf("goose to %d: %w", version, err)
	}
	return steps(res), nil
}

// Pending lists migrations not yet applied, oldest first.
func (m *Migrator) Pending(ctx context.Context) ([]int64, error) {
	status, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	var out []int64
	for _, s := range status {
		if s.State == goose.StatePending {
			out = append(out, s.Source.Version)
		}
	}
	return out, nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

func steps(res []*goose.MigrationResult) []Step {
	out := make([]Step, 0, len(res))
	for _, r := range res {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Step{Version: r.Source.Version, Path: r.Source.Path, Direction: r.Direction})
	}
	return out
}
