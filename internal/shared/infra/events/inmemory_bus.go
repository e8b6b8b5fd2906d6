package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/leadhook/internal/shared/infra/platform/bus"
)

var ErrBusClosed = errors.New("event bus closed")

// InMemoryEventBus implementa un bus de eventos para UN solo topic.
// Cada suscriptor recibe el evento serializado en JSON; si su buffer está lleno el evento se descarta.
type InMemoryEventBus struct {
	subscribers []chan []byte
	mu          sync.RWMutex
	closed      bool
	topic       string
	log         *zap.Logger
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventBus = (*InMemoryEventBus)(nil)

// NewInMemoryEventBus crea un bus de eventos para un topic específico.
func NewInMemoryEventBus(topic string, log *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make([]chan []byte, 0),
		topic:       topic,
		log:         log,
	}
}

// Publish envía un evento a todos los suscriptores de este bus sin bloquear.
func (b *InMemoryEventBus) Publish(ctx context.Context, event interface{}) error {
	payloadBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	for _, subChan := range b.subscribers {
		select {
		case subChan <- payloadBytes:
		default:
			b.log.Warn("⚠️ In-memory subscriber full, event dropped", zap.String("topic", b.topic))
		}
	}
	return nil
}

// Subscribe suscribe un nuevo oyente a este bus.
func (b *InMemoryEventBus) Subscribe(bufferSize int) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan []byte, bufferSize)
	if b.closed {
		close(subChan)
		return subChan
	}
	b.subscribers = append(b.subscribers, subChan)
	return subChan
}

// Close cierra los canales de los suscriptores. Es idempotente.
func (b *InMemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subChan := range b.subscribers {
		close(subChan)
	}
	b.subscribers = nil
}

func (b *InMemoryEventBus) Topic() string {
	return b.topic
}
