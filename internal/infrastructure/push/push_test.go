package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/domain/entity"
	"helpdesk/internal/domain/service"
)

func browserSubscription(t *testing.T, endpoint string) *entity.PushSubscription {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return &entity.PushSubscription{
		Endpoint: endpoint,
		Keys: entity.PushKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func newTestWebPushClient(t *testing.T) *WebPushClient {
	t.Helper()
	private, public, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	client, err := NewWebPushClient(public, private, "mailto:ops@example.com")
	require.NoError(t, err)
	return client
}

func TestWebPushDelivers(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestWebPushClient(t)
	err := client.Send(context.Background(), browserSubscription(t, server.URL), entity.PushNotification{Title: "t", Body: "b"})

	require.NoError(t, err)
	assert.Contains(t, gotAuth, "vapid")
}

func TestWebPushGoneSubscription(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := newTestWebPushClient(t)
		err := client.Send(context.Background(), browserSubscription(t, server.URL), entity.PushNotification{Title: "t"})
		assert.ErrorIs(t, err, service.ErrSubscriptionGone)

		server.Close()
	}
}

func TestWebPushServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestWebPushClient(t)
	err := client.Send(context.Background(), browserSubscription(t, server.URL), entity.PushNotification{Title: "t"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrSubscriptionGone)
}

func TestNewWebPushClientRequiresKeys(t *testing.T) {
	_, err := NewWebPushClient("", "", "mailto:x@example.com")
	assert.Error(t, err)
}

type recordingSender struct{ calls int }

func (s *recordingSender) Send(ctx context.Context, sub *entity.PushSubscription, n entity.PushNotification) error {
	s.calls++
	return nil
}

func TestRouterPicksProviderBySubscription(t *testing.T) {
	web, fcm := &recordingSender{}, &recordingSender{}
	router := NewRouter(web, fcm)
	ctx := context.Background()

	require.NoError(t, router.Send(ctx, &entity.PushSubscription{Endpoint: "https://push/x"}, entity.PushNotification{}))
	require.NoError(t, router.Send(ctx, &entity.PushSubscription{Token: "tok"}, entity.PushNotification{}))
	assert.Equal(t, 1, web.calls)
	assert.Equal(t, 1, fcm.calls)

	webOnly := NewRouter(web, nil)
	assert.Error(t, webOnly.Send(ctx, &entity.PushSubscription{Token: "tok"}, entity.PushNotification{}))
}

func TestFCMMessageCarriesLink(t *testing.T) {
	msg := fcmMessage("tok", entity.PushNotification{Title: "T", Body: "B", URL: "/support", Tag: "chat-1"})

	assert.Equal(t, "tok", msg.Token)
	assert.Equal(t, "T", msg.Notification.Title)
	assert.Equal(t, "/support", msg.Webpush.FCMOptions.Link)
	assert.Equal(t, "chat-1", msg.Data["tag"])
}
