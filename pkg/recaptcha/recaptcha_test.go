package recaptcha

import (
	"context"
	"net"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFake(t *testing.T) string {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/siteverify", func(c *fiber.Ctx) error {
		switch c.FormValue("response") {
		case "good":
			return c.JSON(fiber.Map{"success": true, "score": 0.9})
		case "lowscore":
			return c.JSON(fiber.Map{"success": true, "score": 0.1})
		default:
			return c.JSON(fiber.Map{"success": false, "error-codes": []string{"invalid-input-response"}})
		}
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String() + "/siteverify"
}

func TestVerifier(t *testing.T) {
	v := NewVerifier("secret", 0.5).WithURL(startFake(t))
	ctx := context.Background()

	ok, err := v.Verify(ctx, "good", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(ctx, "lowscore", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(ctx, "bad", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
