package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Setenv("STOREFRONT_ENV_TEST", "  value ")
	assert.Equal(t, "value", Get("STOREFRONT_ENV_TEST", "fallback"))

	t.Setenv("STOREFRONT_ENV_TEST", "   ")
	assert.Equal(t, "fallback", Get("STOREFRONT_ENV_TEST", "fallback"))
}
