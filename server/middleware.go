package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/toolink/folio/limiter"
	"github.com/toolink/folio/meta"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Rate-limit response headers.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderRetry     = "Retry-After"
)

const tooManyRequests = "Too many requests. Please try again later."

// withMetadata attaches an empty meta.Metadata to every request.
func withMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := meta.New().WithContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestID reuses an incoming X-Request-ID or generates one and stores it in
// the request metadata.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		meta.FromContext(r.Context()).Set(meta.KeyRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// clientIdentity resolves the client identifier once per request.
func clientIdentity(trustRemoteAddr bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ClientIdentifier(r, trustRemoteAddr)
			meta.FromContext(r.Context()).Set(meta.KeyClientID, id)
			next.ServeHTTP(w, r)
		})
	}
}

// logContext copies the request identity from metadata onto the request logger.
func logContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", meta.RequestID(ctx)).Str("client_id", meta.ClientID(ctx))
		})
		next.ServeHTTP(w, r)
	})
}

// accessLog logs every request once it completes, with the rate-limit
// decision when the route is limited.
func accessLog() func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		ctx := r.Context()
		event := hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration)

		if category, err := meta.Get[string](ctx, meta.KeyCategory); err == nil {
			event = event.Str("ratelimit_category", category)
		}
		if res, err := meta.Get[limiter.Result](ctx, meta.KeyRateLimit); err == nil {
			event = event.Bool("allowed", res.Allowed).Int("ratelimit_remaining", res.Remaining)
		}
		event.Msg("request handled")
	})
}

// rateLimit consults l exactly once per request. Rate-limit headers are set
// before next runs so they accompany success and error responses alike.
// A failing store lets the request through.
func (s *Server) rateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := meta.ClientID(ctx)
			if id == "" {
				id = UnknownClient
			}

			res, err := l.Check(ctx, id)
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Str("category", l.Name()).Msg("rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			md := meta.FromContext(ctx)
			md.Set(meta.KeyCategory, l.Name())
			md.Set(meta.KeyRateLimit, res)
			setRateLimitHeaders(w.Header(), res)

			if !res.Allowed {
				retry := int(res.RetryAfter(s.clock()) / time.Second)
				w.Header().Set(HeaderRetry, strconv.Itoa(retry))
				writeJSON(w, r, http.StatusTooManyRequests, errorBody{Error: tooManyRequests, RetryAfter: &retry})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(h http.Header, res limiter.Result) {
	h.Set(HeaderLimit, strconv.Itoa(res.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
	h.Set(HeaderReset, formatTimestamp(res.ResetAt))
}
