// Package credential generates coupon secrets, derives their storable
// fingerprints, and encodes/decodes the externally shared payload forms.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"qr-coupon-service/internal/domain"
)

// secretBytes is the entropy of a freshly generated secret. 20 random bytes
// (160 bits) keep the hex token short enough for a scannable QR code while
// staying far beyond guessing range.
const secretBytes = 20

// GenerateSecret draws a new coupon secret from the OS CSPRNG, hex encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// FingerprintOf derives the one-way fingerprint stored in place of a secret.
// Deterministic: the same secret always maps to the same fingerprint, and the
// secret cannot be recovered from it.
func FingerprintOf(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Payload is the externally shared credential: coupon id plus raw secret.
// Encoding it is the only place the secret leaves the process after issuance.
type Payload struct {
	CouponID string `json:"cid"`
	Token    string `json:"token"`
}

// EncodeLink renders the payload as a redemption link of the form
// <base>/redeem?cid=<id>&t=<secret>.
func EncodeLink(baseURL, id, secret string) string {
	q := url.Values{}
	q.Set("cid", id)
	q.Set("t", secret)
	return strings.TrimSuffix(baseURL, "/") + "/redeem?" + q.Encode()
}

// EncodeRecord renders the payload as the compact JSON record embedded in QR
// codes.
func EncodeRecord(id, secret string) (string, error) {
	b, err := json.Marshal(Payload{CouponID: id, Token: secret})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode accepts every supported external representation and extracts the
// id/secret pair: the JSON record {"cid":...,"token":...}, a redemption link,
// or a bare query string carrying cid and t. Both forms must yield the same
// logical pair; anything else is domain.ErrMalformedPayload.
func Decode(raw string) (id, secret string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", domain.ErrMalformedPayload
	}

	if strings.HasPrefix(raw, "{") {
		var p Payload
		if json.Unmarshal([]byte(raw), &p) != nil || p.CouponID == "" || p.Token == "" {
			return "", "", domain.ErrMalformedPayload
		}
		return p.CouponID, p.Token, nil
	}

	query := raw
	if u, perr := url.Parse(raw); perr == nil && u.RawQuery != "" {
		query = u.RawQuery
	}
	vals, perr := url.ParseQuery(query)
	if perr != nil {
		return "", "", domain.ErrMalformedPayload
	}
	id, secret = vals.Get("cid"), vals.Get("t")
	if id == "" || secret == "" {
		return "", "", domain.ErrMalformedPayload
	}
	return id, secret, nil
}
