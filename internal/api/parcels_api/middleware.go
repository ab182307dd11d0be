package parcels_api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ParcelBox/internal/apperrors"
	"github.com/BearBump/ParcelBox/internal/auth"
	"github.com/go-chi/chi/v5/middleware"
)

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

// authenticate кладёт identity в контекст, если передан Bearer токен.
// Без заголовка запрос идёт дальше анонимно: права проверяют сервисы.
func (a *ParcelsAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" {
			next.ServeHTTP(w, r)
			return
		}
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeError(w, apperrors.Unauthenticated("invalid token"))
			return
		}
		id, err := a.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// rateLimit считает запросы клиента в фиксированном окне. Ошибки Redis не блокируют запрос.
func (a *ParcelsAPI) rateLimit(name string, l Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.limiter == nil || l.Requests <= 0 || l.Window <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIP(r)
			windowStart := a.now().UTC().Truncate(l.Window)
			key := fmt.Sprintf("rl:%s:%s:%d", name, ip, windowStart.Unix())

			allowed, n, err := a.limiter.Allow(r.Context(), key, l.Requests, l.Window)
			if err != nil {
				slog.Warn("rate limiter unavailable", "route", name, "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				slog.Warn("rate limit exceeded", "route", name, "ip", ip, "count", n)
				retry := windowStart.Add(l.Window).Sub(a.now().UTC())
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP берёт адрес сокета. X-Forwarded-For и X-Real-IP задаёт сам клиент, им не верим.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
