package application

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	// SignatureHeader es la cabecera donde la plataforma envía la firma del cuerpo.
	SignatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

// ComputeSignature devuelve "sha256=" + HMAC-SHA256(secret, body) en hexadecimal.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature comprueba la firma sobre los bytes exactos del cuerpo.
// Falla cerrado: cabecera, cuerpo o secreto vacíos devuelven false.
func VerifySignature(rawBody []byte, signatureHeader, secret string) bool {
	if signatureHeader == "" || len(rawBody) == 0 || secret == "" {
		return false
	}
	expected := ComputeSignature(rawBody, secret)
	// hmac.Equal compara en tiempo constante.
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
