package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database/mock"
)

func testSubscription(t *testing.T, endpoint string) string {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	raw, err := json.Marshal(webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	})
	require.NoError(t, err)
	return string(raw)
}

func testWebPushConfig(t *testing.T) config.WebPushConfig {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return config.WebPushConfig{PublicKey: pub, PrivateKey: priv, Subscriber: "mailto:admin@example.com"}
}

func newTestWebPush(t *testing.T, store *mock.Store) (*WebPushProvider, *httpmock.MockTransport) {
	t.Helper()
	_, push := testTemplates(t)
	transport := httpmock.NewMockTransport()
	p := NewWebPushProvider(testWebPushConfig(t), push, store, nil).
		WithHTTPClient(&http.Client{Transport: transport})
	require.NoError(t, p.ValidateConfig())
	return p, transport
}

func TestWebPushProvider_Disabled(t *testing.T) {
	p := NewWebPushProvider(config.WebPushConfig{}, nil, mock.NewStore(), nil)
	assert.False(t, p.IsEnabled())
	assert.ErrorIs(t, p.ValidateConfig(), ErrDisabled)
}

func TestWebPushProvider_Payload(t *testing.T) {
	p, _ := newTestWebPush(t, mock.NewStore())
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	raw, err := p.Payload(NewEvent("Mallory", "wanted_match", "wanted", ptr(0.7), "", at))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "FaceWatch Alert", got["title"])
	assert.Equal(t, "Mallory detected at 2024-03-01T08:00:00.000Z", got["body"])
	assert.Equal(t, "wanted_match", got["type"])
	assert.Equal(t, 0.7, got["confidence"])
	assert.Equal(t, "wanted", got["status"])

	raw, err = p.Payload(NewEvent("Unknown", "unknown_face", "unknown", nil, "", at))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Nil(t, got["confidence"])
}

func TestWebPushProvider_SendToAllSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	require.NoError(t, store.UpsertSubscription(ctx, "https://push.example.com/a", testSubscription(t, "https://push.example.com/a")))
	require.NoError(t, store.UpsertSubscription(ctx, "https://push.example.com/b", testSubscription(t, "https://push.example.com/b")))

	p, transport := newTestWebPush(t, store)
	transport.RegisterResponder(http.MethodPost, "https://push.example.com/a", httpmock.NewStringResponder(http.StatusCreated, ""))
	transport.RegisterResponder(http.MethodPost, "https://push.example.com/b", httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	err := p.Send(ctx, NewEvent("Alice", "wanted_match", "wanted", nil, "", time.Now()))
	require.NoError(t, err)

	calls := transport.GetCallCountInfo()
	assert.Equal(t, 1, calls["POST https://push.example.com/a"])
	assert.Equal(t, 1, calls["POST https://push.example.com/b"])

	subs, err := store.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 2, "server errors must not drop subscriptions")
}

func TestWebPushProvider_RemovesGoneSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	require.NoError(t, store.UpsertSubscription(ctx, "https://push.example.com/gone", testSubscription(t, "https://push.example.com/gone")))
	require.NoError(t, store.UpsertSubscription(ctx, "https://push.example.com/missing", testSubscription(t, "https://push.example.com/missing")))
	require.NoError(t, store.UpsertSubscription(ctx, "https://push.example.com/ok", testSubscription(t, "https://push.example.com/ok")))

	p, transport := newTestWebPush(t, store)
	transport.RegisterResponder(http.MethodPost, "https://push.example.com/gone", httpmock.NewStringResponder(http.StatusGone, ""))
	transport.RegisterResponder(http.MethodPost, "https://push.example.com/missing", httpmock.NewStringResponder(http.StatusNotFound, ""))
	transport.RegisterResponder(http.MethodPost, "https://push.example.com/ok", httpmock.NewStringResponder(http.StatusCreated, ""))

	require.NoError(t, p.Send(ctx, NewEvent("Alice", "wanted_match", "wanted", nil, "", time.Now())))

	subs, err := store.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.com/ok", subs[0].Endpoint)
}

func TestWebPushProvider_BadStoredSubscription(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	require.NoError(t, store.UpsertSubscription(ctx, "https://push.example.com/bad", "{not json"))

	p, transport := newTestWebPush(t, store)
	require.NoError(t, p.Send(ctx, NewEvent("Alice", "wanted_match", "wanted", nil, "", time.Now())))
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestWebPushProvider_ListError(t *testing.T) {
	store := mock.NewStore()
	store.SubscriptionsError = assert.AnError

	p, _ := newTestWebPush(t, store)
	assert.Error(t, p.Send(context.Background(), NewEvent("Alice", "wanted_match", "wanted", nil, "", time.Now())))
}
