package services_test

import (
	"context"
	"errors"
	"testing"

	"agromarket/internal/services"
	"agromarket/pkg/cache"
	"agromarket/pkg/whatsapp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookBody = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
"messaging_product":"whatsapp",
"contacts":[{"wa_id":"5565999887766","profile":{"name":"João"}}],
"messages":[
 {"id":"wamid.A","from":"5565999887766","timestamp":"1760870000","type":"text","text":{"body":"catalogo"}},
 {"id":"wamid.B","from":"5565999887766","timestamp":"1760870001","type":"image"}
]}}]}]}`

func TestWebhookService_VerifySubscription(t *testing.T) {
	svc := services.NewWebhookService("verify-me", "app-secret", nil, nil)

	challenge, ok := svc.VerifySubscription("subscribe", "verify-me", "12345")
	assert.True(t, ok)
	assert.Equal(t, "12345", challenge)

	_, ok = svc.VerifySubscription("subscribe", "wrong", "12345")
	assert.False(t, ok)
	_, ok = svc.VerifySubscription("unsubscribe", "verify-me", "12345")
	assert.False(t, ok)
}

func TestWebhookService_HandleDelivery(t *testing.T) {
	publisher := &recordingPublisher{}
	notifier := services.NewNotificationService(publisher)
	svc := services.NewWebhookService("verify-me", "app-secret", cache.NewMemoryCache("test"), notifier)
	ctx := context.Background()
	body := []byte(webhookBody)

	_, err := svc.HandleDelivery(ctx, body, "sha256=deadbeef")
	assert.ErrorIs(t, err, services.ErrInvalidSignature)

	sig := whatsapp.Sign("app-secret", body)
	n, err := svc.HandleDelivery(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Redelivery of the same message id is dropped
	n, err = svc.HandleDelivery(ctx, body, sig)
	require.NoError(t, err)
	assert.Zero(t, n)

	notifier.Wait()
	forwarded := publisher.byKey(services.RouteChatbot)
	require.Len(t, forwarded, 1)
	var msg whatsapp.InboundMessage
	decode(t, forwarded[0].body, &msg)
	assert.Equal(t, "wamid.A", msg.MessageID)
	assert.Equal(t, "João", msg.ContactName)
	assert.Equal(t, "catalogo", msg.Text)
}

func TestWebhookService_HandleDelivery_UnreadableBody(t *testing.T) {
	svc := services.NewWebhookService("", "app-secret", nil, nil)
	body := []byte("{not json")

	n, err := svc.HandleDelivery(context.Background(), body, whatsapp.Sign("app-secret", body))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestWebhookService_HandleDelivery_FailedForwardIsRetried(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("channel closed")}
	seen := cache.NewMemoryCache("test")
	svc := services.NewWebhookService("verify-me", "app-secret", seen, services.NewNotificationService(publisher))
	ctx := context.Background()
	body := []byte(webhookBody)
	sig := whatsapp.Sign("app-secret", body)

	n, err := svc.HandleDelivery(ctx, body, sig)
	assert.ErrorIs(t, err, services.ErrForwardFailed)
	assert.Zero(t, n)

	// The broker recovers and the redelivered message goes through
	publisher.err = nil
	n, err = svc.HandleDelivery(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.HandleDelivery(ctx, body, sig)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, publisher.byKey(services.RouteChatbot), 2)
}

func TestWebhookService_HandleDelivery_NoBrokerDoesNotMarkSeen(t *testing.T) {
	seen := cache.NewMemoryCache("test")
	body := []byte(webhookBody)
	sig := whatsapp.Sign("app-secret", body)
	ctx := context.Background()

	disabled := services.NewWebhookService("verify-me", "app-secret", seen, services.NewNotificationService(nil))
	n, err := disabled.HandleDelivery(ctx, body, sig)
	require.NoError(t, err)
	assert.Zero(t, n)

	publisher := &recordingPublisher{}
	enabled := services.NewWebhookService("verify-me", "app-secret", seen, services.NewNotificationService(publisher))
	n, err = enabled.HandleDelivery(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
