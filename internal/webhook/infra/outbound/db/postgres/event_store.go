package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// EventStorePostgres implementa domain.PayloadStore con columnas JSONB.
type EventStorePostgres struct {
	db *sql.DB
}

func NewEventStorePostgres(db *sql.DB) *EventStorePostgres {
	return &EventStorePostgres{db: db}
}

// InitPostgres crea la tabla webhook_events si no existe.
func InitPostgres(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS webhook_events (
			id UUID PRIMARY KEY,
			received_at TIMESTAMP WITH TIME ZONE NOT NULL,
			source TEXT NOT NULL,
			headers JSONB NOT NULL,
			payload JSONB NOT NULL,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			platform TEXT,
			object_type TEXT,
			entry_count INTEGER,
			entry_id TEXT,
			entry_time BIGINT,
			changes JSONB
		)
	`)
	return err
}

// Save inserta el evento; el id es un UUID generado aquí.
func (s *EventStorePostgres) Save(ctx context.Context, evt *domain.WebhookEvent) (string, error) {
	headers, err := json.Marshal(evt.Headers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal headers: %w", err)
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	var (
		platform, objectType, entryID sql.NullString
		entryCount, entryTime         sql.NullInt64
		changes                       sql.NullString
	)
	if evt.IsPlatformEvent() {
		platform = sql.NullString{String: stripNUL(evt.Platform), Valid: true}
		objectType = sql.NullString{String: stripNUL(evt.ObjectType), Valid: true}
		entryCount = sql.NullInt64{Int64: int64(evt.EntryCount), Valid: true}
		entryID = sql.NullString{String: stripNUL(evt.EntryID), Valid: evt.EntryID != ""}
		entryTime = sql.NullInt64{Int64: evt.EntryTime, Valid: evt.EntryTime != 0}
		if len(evt.Changes) > 0 {
			raw, err := json.Marshal(evt.Changes)
			if err != nil {
				return "", fmt.Errorf("failed to marshal changes: %w", err)
			}
			changes = sql.NullString{String: string(jsonbSafe(raw)), Valid: true}
		}
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO webhook_events
		 (id, received_at, source, headers, payload, processed, platform, object_type, entry_count, entry_id, entry_time, changes)
		 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, FALSE, $6, $7, $8, $9, $10, $11::jsonb)`,
		id, evt.ReceivedAt, evt.Source, string(jsonbSafe(headers)), string(jsonbSafe(payload)),
		platform, objectType, entryCount, entryID, entryTime, changes,
	)
	if err != nil {
		return "", fmt.Errorf("insert webhook event: %w", err)
	}

	evt.ID = id.String()
	return evt.ID, nil
}

// Postgres rechaza U+0000 tanto en TEXT como en JSONB ("unsupported Unicode escape
// sequence"). Se sustituye por U+FFFD para no perder la entrega entera por un carácter.
const nulReplacement = "\uFFFD"

func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", nulReplacement)
}

// jsonbSafe reescribe los escapes \u0000 de un JSON ya serializado como \ufffd.
// Respeta las barras escapadas: "\\u0000" es texto literal y no se toca.
func jsonbSafe(raw []byte) []byte {
	const nulEscape = `\u0000`
	if !bytes.Contains(raw, []byte(nulEscape)) {
		return raw
	}
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			out = append(out, raw[i])
			continue
		}
		if bytes.HasPrefix(raw[i:], []byte(nulEscape)) {
			out = append(out, `\ufffd`...)
			i += len(nulEscape) - 1
			continue
		}
		// Cualquier otro escape se copia entero (barra + carácter escapado).
		out = append(out, raw[i], raw[i+1])
		i++
	}
	return out
}

func (s *EventStorePostgres) Available() bool {
	return s.db != nil
}

var _ domain.PayloadStore = (*EventStorePostgres)(nil)
