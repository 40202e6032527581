package myconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Run("Missing secrets", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")
		t.Setenv("GATEWAY_MERCHANT_CODE", "")
		t.Setenv("GATEWAY_HASH_SECRET", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Defaults and overrides", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "session-secret")
		t.Setenv("GATEWAY_MERCHANT_CODE", "MERCHANT1")
		t.Setenv("GATEWAY_HASH_SECRET", "hash-secret")
		t.Setenv("PORT", "9090")
		t.Setenv("CHECKOUT_CONTEXT_TTL", "45m")
		t.Setenv("BACKEND_TIMEOUT", "3")

		cfg, err := Load()
		assert.NoError(t, err)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, "http://localhost:9090", cfg.Server.BaseURL)
		assert.Equal(t, 45*time.Minute, cfg.Checkout.ContextTTL)
		assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
		assert.Equal(t, "VNPAY", cfg.Checkout.PaymentMethod)
		assert.Equal(t, "2.1.0", cfg.Gateway.Version)
	})
}
