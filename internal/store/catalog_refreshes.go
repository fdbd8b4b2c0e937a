package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/hass-bridge/internal/bridgeerr"
)

var ErrNoCatalogRefresh = fmt.Errorf("no catalog refresh recorded: %w", bridgeerr.ErrNotFound)

type CatalogRefresh struct {
	ID        string
	Trigger   string
	Entities  int
	Error     string
	CreatedAt time.Time
}

type RecordCatalogRefreshInput struct {
	// Trigger is what started the refresh: startup, reload or schedule.
	Trigger  string
	Entities int
	Error    string
}

func (s *Store) RecordCatalogRefresh(ctx context.Context, input RecordCatalogRefreshInput) (CatalogRefresh, error) {
	record := CatalogRefresh{
		ID:        "refresh_" + uuid.NewString(),
		Trigger:   strings.ToLower(strings.TrimSpace(input.Trigger)),
		Entities:  input.Entities,
		Error:     strings.TrimSpace(input.Error),
		CreatedAt: time.Now().UTC(),
	}
	if record.Trigger == "" {
		return CatalogRefresh{}, fmt.Errorf("catalog refresh trigger is required")
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO catalog_refreshes (id, trigger_name, entities, error_message, created_at_unix)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.Trigger,
		record.Entities,
		nullIfEmpty(record.Error),
		record.CreatedAt.UnixNano(),
	); err != nil {
		return CatalogRefresh{}, fmt.Errorf("insert catalog refresh: %w", err)
	}
	return record, nil
}

func (s *Store) LatestCatalogRefresh(ctx context.Context) (CatalogRefresh, error) {
	var record CatalogRefresh
	var createdAt int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, trigger_name, entities, COALESCE(error_message, ''), created_at_unix
		 FROM catalog_refreshes
		 ORDER BY created_at_unix DESC, rowid DESC
		 LIMIT 1`,
	).Scan(&record.ID, &record.Trigger, &record.Entities, &record.Error, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CatalogRefresh{}, ErrNoCatalogRefresh
	}
	if err != nil {
		return CatalogRefresh{}, fmt.Errorf("query catalog refresh: %w", err)
	}
	record.CreatedAt = time.Unix(0, createdAt).UTC()
	return record, nil
}
