package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
)

// signatureHeader is the "k=v,k=v" form both providers use. Repeated keys
// (several v1 entries during secret rotation) are all kept.
type signatureHeader map[string][]string

func parseSignatureHeader(h string) signatureHeader {
	out := signatureHeader{}
	for part := range strings.SplitSeq(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = append(out[k], v)
	}
	return out
}

func (h signatureHeader) first(key string) string {
	if vs := h[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func signHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// matchAny compares in constant time against every candidate signature.
func matchAny(expected string, candidates []string) bool {
	for _, c := range candidates {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(c))) {
			return true
		}
	}
	return false
}

func checkTimestamp(raw string, now time.Time, tolerance time.Duration) error {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", domain.ErrWebhookVerificationFailed, raw)
	}
	// Some providers send milliseconds.
	if ts > 1e12 {
		ts /= 1000
	}
	if d := now.Sub(time.Unix(ts, 0)); d > tolerance || d < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrWebhookVerificationFailed)
	}
	return nil
}
