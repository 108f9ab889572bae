package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"deja/internal/platform/metrics"
)

// RequestLogger deja un logger con request_id en el contexto (zerolog.Ctx)
// y al terminar registra una línea por request más las métricas HTTP.
// Los middlewares internos pueden sumarle campos (AuthContext agrega user_id).
func RequestLogger(base zerolog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			log := base.With().Str("request_id", chimw.GetReqID(r.Context())).Logger()
			r = r.WithContext(log.WithContext(r.Context()))

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			elapsed := time.Since(start)

			m.ObserveHTTP(r.Method, route, strconv.Itoa(status), elapsed.Seconds())

			reqLog := zerolog.Ctx(r.Context())
			ev := reqLog.Info()
			switch {
			case status >= 500:
				ev = reqLog.Error()
			case status >= 400:
				ev = reqLog.Warn()
			}
			ev.Str("method", r.Method).
				Str("route", route).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", elapsed).
				Msg("http request")
		})
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
