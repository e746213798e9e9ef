package security

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const qrCodeBytes = 15

var qrEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewQRCode returns an unguessable code such as "meal-4QZ7...". The prefix is
// informational only; lookups always match the full string.
func NewQRCode(prefix string) (string, error) {
	buf := make([]byte, qrCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate qr code: %w", err)
	}
	body := strings.ToLower(qrEncoding.EncodeToString(buf))
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return body, nil
	}
	return prefix + "-" + body, nil
}
