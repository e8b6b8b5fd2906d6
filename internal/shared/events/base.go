package events

import (
	"encoding/json"
	"time"
)

// Base de todos los eventos de integración
type IntegrationEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"` // contenido específico del evento
	Key       string          `json:"-"`
}

// NewIntegrationEvent serializa data y arma el evento con la clave de partición dada.
func NewIntegrationEvent(eventType, key string, data interface{}, now time.Time) (IntegrationEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return IntegrationEvent{}, err
	}
	return IntegrationEvent{
		Type:      eventType,
		Timestamp: now.UTC(),
		Data:      raw,
		Key:       key,
	}, nil
}

func (e IntegrationEvent) PartitionKey() string {
	return e.Key
}
