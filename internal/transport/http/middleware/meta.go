package middleware

import (
	"net/http"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

// RequestMeta extracts the client details recorded in the audit log.
func RequestMeta(r *http.Request) domain.RequestMeta {
	var m domain.RequestMeta
	if ip := realIP(r); ip != "" {
		m.IPAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		m.UserAgent = &ua
	}
	return m
}
