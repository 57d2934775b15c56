package lead

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/resilience"
)

func TestSignedWebhookVerifies(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	verified := make(chan bool, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
		require.NoError(t, err)
		verified <- VerifySignature("s3cret", ts, body, r.Header.Get(HeaderSignature), now, 5*time.Minute)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client := resilience.NewHTTPClient(resilience.ClientConfig{Target: "lead-webhook-signed", Timeout: time.Second, MaxAttempts: 1})
	client.Sign = SignWebhook("s3cret", func() time.Time { return now })
	_, err := client.PostJSON(context.Background(), srv.URL, map[string]any{"event": "lead.received"})
	require.NoError(t, err)
	require.True(t, <-verified)
}

func TestVerifySignatureRejects(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"event":"lead.received"}`)
	sig := ComputeSignature("s3cret", now.Unix(), body)

	require.True(t, VerifySignature("s3cret", now.Unix(), body, sig, now, time.Minute))
	require.False(t, VerifySignature("other", now.Unix(), body, sig, now, time.Minute))
	require.False(t, VerifySignature("s3cret", now.Unix(), []byte(`{}`), sig, now, time.Minute))
	require.False(t, VerifySignature("s3cret", now.Unix(), body, sig, now.Add(2*time.Minute), time.Minute))
}

func TestSignWebhookDisabledWithoutSecret(t *testing.T) {
	require.Nil(t, SignWebhook("", nil))
}
