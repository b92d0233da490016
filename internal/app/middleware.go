package app

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/calassist/calassist/internal/config"
	"github.com/calassist/calassist/internal/rest"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// publicPaths skip bearer authentication: the browser cannot attach a
// header while following the OAuth redirects.
var publicPaths = map[string]bool{
	"/health":               true,
	"/auth/google/login":    true,
	"/auth/google/callback": true,
}

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, cfg config.Application) {
	r.Use(requestLogger)
	if cfg.API.RateLimitPerMinute > 0 {
		r.Use(newRateLimiter(cfg.API.RateLimitPerMinute, cfg.API.RateLimitBurst, cfg.Server.TrustProxyHeaders).middleware)
	}
	r.Use(bearerAuth(cfg.API.Token))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, req)
		log.WithFields(log.Fields{
			"method":   req.Method,
			"path":     req.URL.Path,
			"status":   recorder.status,
			"duration": time.Since(started).String(),
		}).Debug("handled request")
	})
}

// bearerAuth answers 401 when the Authorization header is missing or not a
// bearer token and 403 when the token does not match.
func bearerAuth(token string) mux.MiddlewareFunc {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if publicPaths[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}

			header := req.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || presented == "" {
				rest.WriteError(w, http.StatusUnauthorized, "Missing bearer token", "")
				return
			}
			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				log.Debugf("rejected request to %s with an invalid token", req.URL.Path)
				rest.WriteError(w, http.StatusForbidden, "Invalid token", "")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// rateLimiter keeps one token bucket per client address. Idle buckets expire.
type rateLimiter struct {
	limiters   *expirable.LRU[string, *rate.Limiter]
	rate       rate.Limit
	burst      int
	trustProxy bool
}

func newRateLimiter(requestsPerMin, burst int, trustProxy bool) *rateLimiter {
	if burst <= 0 {
		burst = max(requestsPerMin/10, 1)
	}
	return &rateLimiter{
		limiters:   expirable.NewLRU[string, *rate.Limiter](1000, nil, 5*time.Minute),
		rate:       rate.Limit(float64(requestsPerMin) / 60.0),
		burst:      burst,
		trustProxy: trustProxy,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	limiter, ok := rl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters.Add(key, limiter)
	}
	return limiter.Allow()
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip := clientIP(req, rl.trustProxy)
		if !rl.allow(ip) {
			log.Warnf("rate limit exceeded for %s", ip)
			w.Header().Set("Retry-After", "60")
			rest.WriteError(w, http.StatusTooManyRequests, "Too many requests", "")
			return
		}
		next.ServeHTTP(w, req)
	})
}

// clientIP is the peer address. Forwarding headers are honoured only when
// trustProxy is set, since any client can send them.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
