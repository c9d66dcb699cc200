package middleware

import (
	"net"
	"net/http"

	"github.com/mssola/useragent"

	"disha/pkg/requestcontext"
)

// Device kinds recorded on transition records. Field teams use the mobile
// app; operations roles use the web dashboard.
const (
	DeviceMobile  = "mobile"
	DeviceWeb     = "web"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// Device classifies the calling client from its User-Agent and records it,
// plus the client IP, in context for audit enrichment.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithDevice(r.Context(), classify(ua))
		ctx = requestcontext.WithClientMetadata(ctx, clientIP(r), ua)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func classify(rawUA string) string {
	if rawUA == "" {
		return DeviceUnknown
	}
	ua := useragent.New(rawUA)
	switch {
	case ua.Bot():
		return DeviceBot
	case ua.Mobile():
		return DeviceMobile
	default:
		return DeviceWeb
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
