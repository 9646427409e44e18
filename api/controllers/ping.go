package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/pkg/instance"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{
			"status":   "ok",
			"instance": instance.GetID(),
		}
		if reqID := middleware.RequestIDFromContext(r.Context()); reqID != "" {
			payload["request_id"] = reqID
		}
		responses.WriteSuccess(w, payload)
	}
}
