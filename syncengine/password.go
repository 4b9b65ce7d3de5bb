package syncengine

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// randomPasswordBytes is the entropy budget for a generated production
// password: 24 bytes, per spec.
const randomPasswordBytes = 24

func (e *Engine) generatePassword() (string, error) {
	if e.env != EnvProd {
		return e.testPass, nil
	}
	buf := make([]byte, randomPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("syncengine: generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
