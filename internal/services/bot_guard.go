package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// CaptchaVerifier is implemented by *recaptcha.Verifier.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// BotSignals are the anti-automation fields sent with public forms.
type BotSignals struct {
	Honeypot       string
	FormStartedAt  int64 // unix milliseconds, set by the page when the form renders
	RecaptchaToken string
	RemoteIP       string
}

// BotGuard rejects form posts that look scripted.
type BotGuard struct {
	minFill  time.Duration
	verifier CaptchaVerifier
	now      func() time.Time
}

// NewBotGuard returns a guard. A nil verifier disables the reCAPTCHA check.
func NewBotGuard(minFill time.Duration, verifier CaptchaVerifier) *BotGuard {
	return &BotGuard{minFill: minFill, verifier: verifier, now: time.Now}
}

func (g *BotGuard) Check(ctx context.Context, sig BotSignals) error {
	if strings.TrimSpace(sig.Honeypot) != "" {
		return fmt.Errorf("%w: honeypot filled", ErrBotSuspected)
	}
	if g.minFill > 0 {
		if sig.FormStartedAt <= 0 {
			return fmt.Errorf("%w: missing form timestamp", ErrBotSuspected)
		}
		elapsed := g.now().Sub(time.UnixMilli(sig.FormStartedAt))
		if elapsed < g.minFill {
			return fmt.Errorf("%w: form submitted after %s", ErrBotSuspected, elapsed.Round(time.Millisecond))
		}
	}
	if g.verifier != nil {
		ok, err := g.verifier.Verify(ctx, sig.RecaptchaToken, sig.RemoteIP)
		if err != nil {
			// Fail open when the verifier is unreachable.
			log.Printf("reCAPTCHA verification unavailable: %v", err)
			return nil
		}
		if !ok {
			return fmt.Errorf("%w: captcha rejected", ErrBotSuspected)
		}
	}
	return nil
}
