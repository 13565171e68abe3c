package recaptcha

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// Verifier checks reCAPTCHA tokens against Google's siteverify endpoint.
type Verifier struct {
	secret   string
	url      string
	minScore float64
	timeout  time.Duration
}

// NewVerifier returns a verifier. Scores below minScore are rejected when the
// token comes from reCAPTCHA v3; v2 responses carry no score and pass on success.
func NewVerifier(secret string, minScore float64) *Verifier {
	return &Verifier{secret: secret, url: DefaultVerifyURL, minScore: minScore, timeout: 5 * time.Second}
}

// WithURL points the verifier somewhere else, used by tests.
func (v *Verifier) WithURL(url string) *Verifier {
	v.url = url
	return v
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("secret", v.secret)
	args.Set("response", token)
	if remoteIP != "" {
		args.Set("remoteip", remoteIP)
	}

	agent := fiber.Post(v.url)
	agent.Timeout(v.timeout)
	agent.Form(args)

	var resp verifyResponse
	code, _, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return false, fmt.Errorf("recaptcha verification failed: %v", errs[0])
	}
	if code != fiber.StatusOK {
		return false, fmt.Errorf("recaptcha verification returned %d", code)
	}
	if !resp.Success {
		return false, nil
	}
	if resp.Score > 0 && resp.Score < v.minScore {
		return false, nil
	}
	return true, nil
}
