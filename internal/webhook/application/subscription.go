package application

import (
	"crypto/subtle"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

const subscribeMode = "subscribe"

// HandleChallenge resuelve el handshake GET de la plataforma.
// Devuelve el challenge tal cual si mode es "subscribe" y el token coincide.
func HandleChallenge(mode, token, challenge, expectedToken string) (string, error) {
	if mode == "" || token == "" {
		return "", domain.ErrChallengeIncomplete
	}
	if mode != subscribeMode || expectedToken == "" {
		return "", domain.ErrChallengeRejected
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
		return "", domain.ErrChallengeRejected
	}
	return challenge, nil
}
