package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"agromarket/pkg/cache"
	"agromarket/pkg/whatsapp"
)

// MessageDedupTTL is how long a delivered message id is remembered.
const MessageDedupTTL = 24 * time.Hour

// WebhookService accepts WhatsApp Cloud API callbacks.
type WebhookService struct {
	verifyToken string
	appSecret   string
	seen        cache.Cache
	notifier    *NotificationService
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(verifyToken, appSecret string, seen cache.Cache, notifier *NotificationService) *WebhookService {
	if notifier == nil {
		notifier = NewNotificationService(nil)
	}
	return &WebhookService{verifyToken: verifyToken, appSecret: appSecret, seen: seen, notifier: notifier}
}

// VerifySubscription answers the hub challenge. ok is false when the token does not match.
func (s *WebhookService) VerifySubscription(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || s.verifyToken == "" || token != s.verifyToken {
		return "", false
	}
	return challenge, true
}

// HandleDelivery checks the signature and forwards each new text message to
// the chatbot. It returns how many messages were forwarded.
//
// A message id is claimed in the cache before it is published and released
// again when the publish fails, so a redelivery is only dropped once the
// message has actually reached the broker. A failed publish returns
// ErrForwardFailed so the sender retries.
func (s *WebhookService) HandleDelivery(ctx context.Context, body []byte, signature string) (int, error) {
	if !whatsapp.VerifySignature(s.appSecret, body, signature) {
		return 0, ErrInvalidSignature
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Authentic but unreadable payloads are still acknowledged.
		log.Printf("Ignoring unreadable webhook payload: %v", err)
		return 0, nil
	}

	forwarded := 0
	for _, msg := range payload.TextMessages() {
		key, fresh := s.claim(ctx, msg.MessageID)
		if !fresh {
			continue
		}
		if err := s.notifier.PublishNow(RouteChatbot, msg); err != nil {
			s.release(ctx, key)
			if errors.Is(err, ErrNoPublisher) {
				log.Printf("Chatbot disabled without a message broker; message %s not answered", msg.MessageID)
				continue
			}
			return forwarded, fmt.Errorf("%w %s: %v", ErrForwardFailed, msg.MessageID, err)
		}
		forwarded++
	}
	if forwarded > 0 {
		log.Printf("Forwarded %d WhatsApp message(s) to the chatbot", forwarded)
	}
	return forwarded, nil
}

// claim marks id as seen. fresh is false for ids already claimed. Without a
// usable cache every message counts as fresh and key is empty.
func (s *WebhookService) claim(ctx context.Context, id string) (key string, fresh bool) {
	if s.seen == nil || id == "" {
		return "", true
	}
	key = s.seen.GenerateKey("wa_msg", id)
	ok, err := s.seen.SetIfAbsent(ctx, key, 1, MessageDedupTTL)
	if err != nil {
		log.Printf("Dedup cache unavailable for %s: %v", id, err)
		return "", true
	}
	return key, ok
}

func (s *WebhookService) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.seen.Delete(ctx, key); err != nil {
		log.Printf("Could not release dedup key %s: %v", key, err)
	}
}
