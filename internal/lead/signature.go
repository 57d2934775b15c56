package lead

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Webhook request headers set by SignWebhook.
const (
	HeaderTimestamp = "X-Glassworks-Timestamp"
	HeaderSignature = "X-Glassworks-Signature"
)

// ComputeSignature is the hex HMAC-SHA256 of "<ts>.<body>" keyed with secret.
func ComputeSignature(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a HeaderSignature value against body and ts, rejecting timestamps
// older than maxAge. Receivers can use it to authenticate deliveries.
func VerifySignature(secret string, ts int64, body []byte, sig string, now time.Time, maxAge time.Duration) bool {
	if maxAge > 0 && now.Sub(time.Unix(ts, 0)) > maxAge {
		return false
	}
	expected := ComputeSignature(secret, ts, body)
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(sig, "sha256=")))
}

// SignWebhook returns a signer for resilience.HTTPClient.Sign. An empty secret disables signing.
func SignWebhook(secret string, now func() time.Time) func(*http.Request, []byte) {
	if secret == "" {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return func(req *http.Request, body []byte) {
		ts := now().Unix()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, "sha256="+ComputeSignature(secret, ts, body))
	}
}
