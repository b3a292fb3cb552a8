package http

import (
	"net/http"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/application/auth"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/application/verification"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Auth         auth.Service
	Verification verification.Service
	// Metrics serves the Prometheus scrape endpoint; nil disables /metrics.
	Metrics http.Handler
}
