package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// EventStoreSQLite guarda los eventos en una tabla local; pensado para despliegues locales.
type EventStoreSQLite struct {
	db *sql.DB
}

func NewEventStoreSQLite(db *sql.DB) *EventStoreSQLite {
	return &EventStoreSQLite{db: db}
}

// InitSQLite crea la tabla webhook_events si no existe
func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS webhook_events (
            id TEXT PRIMARY KEY,
            received_at DATETIME NOT NULL,
            source TEXT NOT NULL,
            headers TEXT NOT NULL,
            payload TEXT NOT NULL,
            processed BOOLEAN NOT NULL DEFAULT 0,
            platform TEXT,
            object_type TEXT,
            entry_count INTEGER,
            entry_id TEXT,
            entry_time INTEGER,
            changes TEXT
        )
    `)
	return err
}

// Save inserta el evento con un UUID nuevo como id.
func (s *EventStoreSQLite) Save(ctx context.Context, evt *domain.WebhookEvent) (string, error) {
	row, err := toRow(evt)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO webhook_events
		 (id,received_at,source,headers,payload,processed,platform,object_type,entry_count,entry_id,entry_time,changes)
		 VALUES (?,?,?,?,?,0,?,?,?,?,?,?)`,
		id, evt.ReceivedAt, evt.Source, row.headers, row.payload,
		row.platform, row.objectType, row.entryCount, row.entryID, row.entryTime, row.changes,
	)
	if err != nil {
		return "", fmt.Errorf("insert webhook event: %w", err)
	}

	evt.ID = id
	return id, nil
}

func (s *EventStoreSQLite) Available() bool {
	return s.db != nil
}

// ------------------ Helpers de mapeo ------------------

type eventRow struct {
	headers    string
	payload    string
	platform   sql.NullString
	objectType sql.NullString
	entryCount sql.NullInt64
	entryID    sql.NullString
	entryTime  sql.NullInt64
	changes    sql.NullString
}

func toRow(evt *domain.WebhookEvent) (*eventRow, error) {
	headers, err := json.Marshal(evt.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal headers: %w", err)
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	row := &eventRow{headers: string(headers), payload: string(payload)}
	if !evt.IsPlatformEvent() {
		return row, nil
	}

	changes, err := json.Marshal(evt.Changes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal changes: %w", err)
	}
	row.platform = sql.NullString{String: evt.Platform, Valid: true}
	row.objectType = sql.NullString{String: evt.ObjectType, Valid: true}
	row.entryCount = sql.NullInt64{Int64: int64(evt.EntryCount), Valid: true}
	row.entryID = sql.NullString{String: evt.EntryID, Valid: evt.EntryID != ""}
	row.entryTime = sql.NullInt64{Int64: evt.EntryTime, Valid: evt.EntryTime != 0}
	row.changes = sql.NullString{String: string(changes), Valid: len(evt.Changes) > 0}
	return row, nil
}

var _ domain.PayloadStore = (*EventStoreSQLite)(nil)
