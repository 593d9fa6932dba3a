package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HeaderSignature carries GitHub's HMAC-SHA256 signature of the request body.
const HeaderSignature = "X-Hub-Signature-256"

// verifySignature checks a GitHub webhook signature against the shared
// secret. The comparison is constant-time.
func verifySignature(header, secret string, body []byte) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return errors.New("signature header is required")
	}
	encoded, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return errors.New("signature header must use the sha256= scheme")
	}
	signature, err := hex.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if subtle.ConstantTimeCompare(signature, mac.Sum(nil)) != 1 {
		return errors.New("signature verification failed")
	}
	return nil
}
