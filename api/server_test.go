package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

func TestNewServerUsesConfiguredPort(t *testing.T) {
	t.Setenv("PORT", "")
	server := NewServer(&config.Config{App: config.AppConfig{Port: "9090"}}, http.NotFoundHandler())
	assert.Equal(t, ":9090", server.Addr)

	t.Setenv("PORT", "7070")
	server = NewServer(&config.Config{App: config.AppConfig{Port: "9090"}}, http.NotFoundHandler())
	assert.Equal(t, ":7070", server.Addr)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Setenv("PORT", "0")
	server := NewServer(&config.Config{}, http.NotFoundHandler())
	server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, server, logger.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
