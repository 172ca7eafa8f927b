package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
)

func TestMercadoPagoStart_SimulatedPix(t *testing.T) {
	m := NewMercadoPago(MercadoPagoConfig{}, nil)
	p := testPayment("30.00")

	co, err := m.Start(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentProcessing, co.Status)
	assert.Equal(t, SimulatedPixCode(p.ID), co.PixCopyPaste)
	assert.True(t, strings.HasPrefix(co.PixCopyPaste, "00020126330014BR.GOV.BCB.PIX0111"))
	assert.Empty(t, co.PreferenceID)

	png, err := base64.StdEncoding.DecodeString(co.PixQRCode)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))

	again, err := m.Start(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, co.PixCopyPaste, again.PixCopyPaste)
}

func TestMercadoPagoStart_LiveNeverSimulates(t *testing.T) {
	p := testPayment("30.00")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))

		var body mpPreferenceRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, p.ID.String(), body.ExternalReference)
		assert.Equal(t, "https://api.example.com/api/v1/payments/webhook/mercadopago", body.NotificationURL)
		if assert.Len(t, body.Items, 1) {
			assert.InDelta(t, 30.0, body.Items[0].UnitPrice, 0.001)
		}

		fmt.Fprint(w, `{"id":"pref-1","init_point":"https://mp.example/init","sandbox_init_point":"https://mp.example/sandbox"}`)
	}))
	defer srv.Close()

	m := NewMercadoPago(MercadoPagoConfig{
		AccessToken: "TEST-token",
		APIURL:      srv.URL,
		BackendURL:  "https://api.example.com/",
		Live:        true,
	}, srv.Client())

	co, err := m.Start(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "pref-1", co.PreferenceID)
	assert.Equal(t, "https://mp.example/init", co.InitPoint)
	assert.Empty(t, co.PixCopyPaste)
}

func TestMercadoPagoStart_LiveFailureIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"invalid access token"}`)
	}))
	defer srv.Close()

	m := NewMercadoPago(MercadoPagoConfig{AccessToken: "bad", APIURL: srv.URL, Live: true}, srv.Client())
	_, err := m.Start(context.Background(), testPayment("10.00"))
	require.ErrorIs(t, err, domain.ErrGateway)
	assert.Contains(t, err.Error(), "invalid access token")
}

func TestMercadoPagoParseWebhook_Simulated(t *testing.T) {
	m := NewMercadoPago(MercadoPagoConfig{}, nil)
	p := testPayment("10.00")

	n, err := m.ParseWebhook(context.Background(), []byte(fmt.Sprintf(
		`{"type":"payment","data":{"id":123,"status":"approved","external_reference":%q}}`, p.ID)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, n.Outcome)
	assert.Equal(t, p.ID, n.PaymentID)
	assert.Equal(t, "123", n.TransactionID)

	n, err = m.ParseWebhook(context.Background(), []byte(`{"topic":"payment","id":"77","status":"rejected"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, n.Outcome)
	assert.Equal(t, "payment rejected", n.Message)

	n, err = m.ParseWebhook(context.Background(), []byte(`{"type":"merchant_order","data":{"id":"5"}}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, n.Outcome)

	_, err = m.ParseWebhook(context.Background(), []byte(`{"type":"payment","data":{}}`))
	require.Error(t, err)
}

func TestMercadoPagoParseWebhook_LiveFetchesPayment(t *testing.T) {
	p := testPayment("10.00")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/555", r.URL.Path)
		fmt.Fprintf(w, `{"id":555,"status":"approved","external_reference":%q}`, p.ID)
	}))
	defer srv.Close()

	m := NewMercadoPago(MercadoPagoConfig{AccessToken: "tok", APIURL: srv.URL, Live: true}, srv.Client())
	n, err := m.ParseWebhook(context.Background(), []byte(`{"type":"payment","data":{"id":"555"}}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, n.Outcome)
	assert.Equal(t, p.ID, n.PaymentID)
	assert.Equal(t, "555", n.Reference)
}

func TestMercadoPagoVerifyWebhook(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMercadoPago(MercadoPagoConfig{WebhookSecret: "mp-secret"}, nil)
	m.now = func() time.Time { return now }

	payload := []byte(`{"type":"payment","data":{"id":"ABC123"}}`)
	ts := fmt.Sprint(now.Unix())
	good := "ts=" + ts + ",v1=" + signHex("mp-secret", "id:abc123;request-id:req-1;ts:"+ts+";")

	require.NoError(t, m.VerifyWebhook(WebhookRequest{Payload: payload, Signature: good, RequestID: "req-1"}))
	require.ErrorIs(t, m.VerifyWebhook(WebhookRequest{Payload: payload, Signature: good, RequestID: "req-2"}), domain.ErrWebhookVerificationFailed)
	require.ErrorIs(t, m.VerifyWebhook(WebhookRequest{Payload: payload}), domain.ErrWebhookVerificationFailed)
}

func TestRegistryAndEventType(t *testing.T) {
	r := NewRegistry(NewStripe(StripeConfig{}, nil), NewMercadoPago(MercadoPagoConfig{}, nil), Manual{})

	a, err := r.Get(domain.ProviderManual)
	require.NoError(t, err)
	co, err := a.Start(context.Background(), testPayment("1.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, co.Status)

	_, err = NewRegistry().Get(domain.ProviderStripe)
	require.ErrorIs(t, err, domain.ErrGateway)

	assert.Equal(t, "payment_intent.succeeded", EventType([]byte(`{"type":"payment_intent.succeeded"}`)))
	assert.Equal(t, "payment", EventType([]byte(`{"topic":"payment"}`)))
	assert.Equal(t, "unknown", EventType([]byte(`<xml/>`)))
	assert.Equal(t, "unknown", EventType([]byte(`{}`)))
}
