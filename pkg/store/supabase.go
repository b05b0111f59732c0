package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/sprachbot/pkg/dialogue"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/supabase-community/supabase-go"
)

const (
	defaultTable           = "Users"
	defaultCreatedAtColumn = "Erstellungsdatum"
)

type SupabaseConfig struct {
	URL             string `mapstructure:"url"`
	Key             string `mapstructure:"key"`
	Table           string `mapstructure:"table"`
	CreatedAtColumn string `mapstructure:"created_at_column"`
}

type inserter interface {
	Insert(table string, row map[string]any) error
}

type postgrestInserter struct {
	client *supabase.Client
}

func (p postgrestInserter) Insert(table string, row map[string]any) error {
	_, _, err := p.client.From(table).Insert(row, false, "", "minimal", "").Execute()
	return err
}

// Supabase writes each record as one row; field names are column names.
type Supabase struct {
	table     string
	createdAt string
	db        inserter
	logger    *slog.Logger
}

func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.Key) == "" {
		return nil, errors.New("supabase: url and key are required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.Key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase: create client: %w", err)
	}
	return newSupabase(cfg, postgrestInserter{client: client}), nil
}

func newSupabase(cfg SupabaseConfig, db inserter) *Supabase {
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if cfg.CreatedAtColumn == "" {
		cfg.CreatedAtColumn = defaultCreatedAtColumn
	}
	return &Supabase{
		table:     cfg.Table,
		createdAt: cfg.CreatedAtColumn,
		db:        db,
		logger:    logging.NewComponentLogger(slog.Default(), "supabase_store"),
	}
}

// Save inserts rec. The PostgREST client has no context support, so a
// cancelled ctx abandons the wait but not the request.
func (s *Supabase) Save(ctx context.Context, rec dialogue.Record) error {
	row := make(map[string]any, len(rec.Values)+1)
	for k, v := range rec.Values {
		row[k] = v
	}
	row[s.createdAt] = rec.CreatedAt.UTC().Format(time.RFC3339)

	done := make(chan error, 1)
	go func() { done <- s.db.Insert(s.table, row) }()
	select {
	case err := <-done:
		if err != nil {
			return errorsx.Wrapf(err, errorsx.ReasonPersistence, "supabase insert into %s", s.table)
		}
		s.logger.Debug("record_inserted", slog.String("table", s.table), slog.Int("columns", len(row)))
		return nil
	case <-ctx.Done():
		return errorsx.Wrap(ctx.Err(), errorsx.ReasonPersistence)
	}
}

var _ dialogue.Persister = (*Supabase)(nil)
