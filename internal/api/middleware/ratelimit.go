package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rifadigital/rifa-api/internal/api/handler/v1/response"
)

// maxLimiterEntries caps the per-IP limiter map; when it fills, the map
// is dropped wholesale and rebuilt as clients come back.
const maxLimiterEntries = 4096

// RateLimit limits each client IP to rps requests per second with the
// given burst. Used on the auth endpoints to slow down credential
// guessing.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	return rateLimit(rps, burst, maxLimiterEntries)
}

func rateLimit(rps float64, burst int, maxEntries int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	return func(ctx *gin.Context) {
		ip := ctx.ClientIP()

		mu.Lock()
		limiter, ok := limiters[ip]
		if !ok {
			if len(limiters) >= maxEntries {
				limiters = make(map[string]*rate.Limiter)
			}
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[ip] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			response.RenderErr(ctx, response.ErrTooManyRequests())
			return
		}

		ctx.Next()
	}
}
