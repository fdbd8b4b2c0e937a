package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandRecord is one outbound command sent to the home automation backend.
type CommandRecord struct {
	ID         string
	IssuerID   string
	IssuerName string
	Phrase     string
	EntityID   string
	Command    string
	Status     int
	Succeeded  bool
	Error      string
	CreatedAt  time.Time
}

type RecordCommandInput struct {
	IssuerID   string
	IssuerName string
	Phrase     string
	EntityID   string
	Command    string
	Status     int
	Succeeded  bool
	Error      string
}

type ListCommandLogInput struct {
	EntityID   string
	IssuerID   string
	FailedOnly bool
	Limit      int
}

func (s *Store) RecordCommand(ctx context.Context, input RecordCommandInput) (CommandRecord, error) {
	record := CommandRecord{
		ID:         "cmd_" + uuid.NewString(),
		IssuerID:   strings.TrimSpace(input.IssuerID),
		IssuerName: strings.TrimSpace(input.IssuerName),
		Phrase:     strings.TrimSpace(input.Phrase),
		EntityID:   strings.TrimSpace(input.EntityID),
		Command:    strings.ToLower(strings.TrimSpace(input.Command)),
		Status:     input.Status,
		Succeeded:  input.Succeeded,
		Error:      strings.TrimSpace(input.Error),
		CreatedAt:  time.Now().UTC(),
	}
	if record.EntityID == "" || record.Command == "" {
		return CommandRecord{}, fmt.Errorf("missing required command log fields")
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO command_log (
			id, issuer_id, issuer_name, phrase, entity_id, command, status, succeeded, error_message, created_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		nullIfEmpty(record.IssuerID),
		nullIfEmpty(record.IssuerName),
		record.Phrase,
		record.EntityID,
		record.Command,
		record.Status,
		boolToInt(record.Succeeded),
		nullIfEmpty(record.Error),
		record.CreatedAt.UnixNano(),
	); err != nil {
		return CommandRecord{}, fmt.Errorf("insert command log: %w", err)
	}
	return record, nil
}

// ListCommandLog returns the newest records first.
func (s *Store) ListCommandLog(ctx context.Context, input ListCommandLogInput) ([]CommandRecord, error) {
	limit := clampLimit(input.Limit)
	whereParts := []string{"1=1"}
	args := make([]any, 0, 4)

	if entityID := strings.TrimSpace(input.EntityID); entityID != "" {
		whereParts = append(whereParts, "entity_id = ?")
		args = append(args, entityID)
	}
	if issuerID := strings.TrimSpace(input.IssuerID); issuerID != "" {
		whereParts = append(whereParts, "issuer_id = ?")
		args = append(args, issuerID)
	}
	if input.FailedOnly {
		whereParts = append(whereParts, "succeeded = 0")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, COALESCE(issuer_id, ''), COALESCE(issuer_name, ''), phrase, entity_id, command, status, succeeded, COALESCE(error_message, ''), created_at_unix
		 FROM command_log
		 WHERE `+strings.Join(whereParts, " AND ")+`
		 ORDER BY created_at_unix DESC, rowid DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query command log: %w", err)
	}
	defer rows.Close()

	records := make([]CommandRecord, 0, limit)
	for rows.Next() {
		var record CommandRecord
		var succeeded int
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.IssuerID,
			&record.IssuerName,
			&record.Phrase,
			&record.EntityID,
			&record.Command,
			&record.Status,
			&succeeded,
			&record.Error,
			&createdAt,
		); err != nil {
			return nil, err
		}
		record.Succeeded = succeeded == 1
		if createdAt > 0 {
			record.CreatedAt = time.Unix(0, createdAt).UTC()
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan command log: %w", err)
	}
	return records, nil
}
