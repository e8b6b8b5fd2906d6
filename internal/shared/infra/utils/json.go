package utils

import (
	"encoding/json"

	"go.uber.org/zap"
)

// UnmarshalAndHandle decodifica el Data de un evento de integración al tipo T y lo pasa a handler.
// Los payloads ilegibles y los errores del handler se registran y el evento se descarta.
func UnmarshalAndHandle[T any](log *zap.Logger, eventType string, data json.RawMessage, handler func(T) error) bool {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warn("Failed to unmarshal event data", zap.String("type", eventType), zap.Error(err))
		return false
	}
	if err := handler(evt); err != nil {
		log.Warn("Event handler failed", zap.String("type", eventType), zap.Error(err))
		return false
	}
	return true
}
