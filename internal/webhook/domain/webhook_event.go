package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// SourceWebhook es el origen por defecto de los eventos recibidos por HTTP.
	SourceWebhook = "webhook"

	// PlatformFacebook se asigna a los eventos con forma de notificación de la plataforma.
	PlatformFacebook = "facebook"
)

// WebhookEvent es el documento que se persiste por cada callback recibido.
// Una vez escrito no se modifica; el flag Processed lo gestiona un worker externo.
type WebhookEvent struct {
	ID         string
	ReceivedAt time.Time
	Source     string
	Headers    map[string]string
	Payload    interface{}
	Processed  bool

	// Campos derivados, solo presentes si el payload es una notificación de la plataforma.
	Platform   string
	ObjectType string
	EntryCount int
	EntryID    string
	EntryTime  int64
	Changes    []Change
}

// Change resume un cambio de la primera entrada. Value es escalar o texto JSON.
type Change struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// IsPlatformEvent indica si se añadieron los campos derivados de la plataforma.
func (e *WebhookEvent) IsPlatformEvent() bool {
	return e.Platform != ""
}

// NewWebhookEvent normaliza payload y cabeceras en un WebhookEvent listo para guardar.
func NewWebhookEvent(payload interface{}, headers map[string][]string, source string, now time.Time) *WebhookEvent {
	if source == "" {
		source = SourceWebhook
	}

	evt := &WebhookEvent{
		ReceivedAt: now.UTC(),
		Source:     source,
		Headers:    NormalizeHeaders(headers),
		Payload:    payload,
		Processed:  false,
	}

	env := Classify(payload)
	if env.Kind != KindPlatform {
		return evt
	}

	evt.Platform = PlatformFacebook
	evt.ObjectType = env.Object
	evt.EntryCount = len(env.Entries)

	if len(env.Entries) > 0 {
		first := env.Entries[0]
		evt.EntryID = first.ID
		evt.EntryTime = first.Time
		for _, c := range first.Changes {
			evt.Changes = append(evt.Changes, Change{Field: c.Field, Value: scalarOrText(c.Value)})
		}
	}

	return evt
}

// NormalizeHeaders pasa los nombres a minúsculas y une valores repetidos con ", ".
func NormalizeHeaders(headers map[string][]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		key := strings.ToLower(name)
		if prev, ok := out[key]; ok {
			values = append([]string{prev}, values...)
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// scalarOrText deja pasar los escalares y serializa objetos, arrays y null a JSON.
func scalarOrText(v interface{}) interface{} {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return v
	}
}
