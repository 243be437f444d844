package social

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

// ChallengeResponse answers the platform's webhook security check: an
// HMAC-SHA256 of the challenge token keyed by the consumer secret,
// base64-encoded and tagged with the algorithm name.
//
// The platform calls the webhook with a crc_token and expects
// {"response_token": "sha256=<digest>"} back within its deadline.
func ChallengeResponse(token, consumerSecret string) (string, error) {
	if consumerSecret == "" {
		return "", errors.New("consumer secret not configured")
	}
	mac := hmac.New(sha256.New, []byte(consumerSecret))
	mac.Write([]byte(token))
	return "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
