package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

// verifyHMAC checks a hex-encoded HMAC-SHA256 signature over the raw payload.
// Used by the Israeli gateways, which all sign server callbacks this way with
// the tenant's webhook secret.
func verifyHMAC(secret *string, payload []byte, signature string) error {
	if secret == nil || *secret == "" || signature == "" {
		return apperror.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(*secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperror.ErrInvalidSignature
	}
	return nil
}
