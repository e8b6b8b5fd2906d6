package domain

import (
	"fmt"
	"strconv"
)

// PayloadKind clasifica el cuerpo recibido por su estructura.
type PayloadKind int

const (
	KindGeneric PayloadKind = iota
	KindPlatform
)

func (k PayloadKind) String() string {
	if k == KindPlatform {
		return "platform"
	}
	return "generic"
}

// LeadgenField es el campo de cambio que anuncia un lead nuevo.
const LeadgenField = "leadgen"

// Envelope es el resultado de clasificar un payload: genérico o notificación de la plataforma.
type Envelope struct {
	Kind    PayloadKind
	Object  string
	Entries []Entry
}

type Entry struct {
	ID      string
	Time    int64
	Changes []EntryChange
}

type EntryChange struct {
	Field string
	Value interface{}
}

// LeadRef es la referencia a un lead que llega en un cambio "leadgen".
type LeadRef struct {
	LeadgenID   string
	PageID      string
	FormID      string
	AdID        string
	AdgroupID   string
	CreatedTime int64
}

// Classify decide la variante del payload. Es de plataforma cuando es un objeto con
// "object" (string no vacío) y "entry" (array, puede estar vacío).
func Classify(payload interface{}) Envelope {
	root, ok := payload.(map[string]interface{})
	if !ok {
		return Envelope{Kind: KindGeneric}
	}

	object, _ := root["object"].(string)
	rawEntries, isArray := root["entry"].([]interface{})
	if object == "" || !isArray {
		return Envelope{Kind: KindGeneric}
	}

	env := Envelope{Kind: KindPlatform, Object: object, Entries: make([]Entry, 0, len(rawEntries))}
	for _, raw := range rawEntries {
		m, _ := raw.(map[string]interface{})
		entry := Entry{
			ID:   asString(m["id"]),
			Time: asInt64(m["time"]),
		}
		changes, _ := m["changes"].([]interface{})
		for _, rc := range changes {
			cm, _ := rc.(map[string]interface{})
			entry.Changes = append(entry.Changes, EntryChange{
				Field: asString(cm["field"]),
				Value: cm["value"],
			})
		}
		env.Entries = append(env.Entries, entry)
	}

	return env
}

// LeadRefs recorre todas las entradas y devuelve los leads anunciados.
// Se descartan los cambios sin leadgen_id.
func (e Envelope) LeadRefs() []LeadRef {
	if e.Kind != KindPlatform {
		return nil
	}

	var refs []LeadRef
	for _, entry := range e.Entries {
		for _, c := range entry.Changes {
			if c.Field != LeadgenField {
				continue
			}
			v, ok := c.Value.(map[string]interface{})
			if !ok {
				continue
			}
			ref := LeadRef{
				LeadgenID:   asString(v["leadgen_id"]),
				PageID:      asString(v["page_id"]),
				FormID:      asString(v["form_id"]),
				AdID:        asString(v["ad_id"]),
				AdgroupID:   asString(v["adgroup_id"]),
				CreatedTime: asInt64(v["created_time"]),
			}
			if ref.LeadgenID == "" {
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

// Los ids de la plataforma llegan a veces como número y a veces como string.
func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
