package handler

import (
	"io"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"absensi/internal/httpmiddleware"
	"absensi/internal/web"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	RateLimitPerMin int
	LogOutput       io.Writer
}

// Router builds the gin engine with middleware and all routes.
func (h *Handler) Router(opts RouterOptions) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	// Match on the escaped path so /rekap/a%2Fb reaches RekapUser as "a/b".
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.SetHTMLTemplate(tmpl)

	r.Use(gin.Recovery())
	if opts.LogOutput != nil {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			Output:    opts.LogOutput,
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.NewTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin).Middleware())
	if h.sessions != nil {
		r.Use(h.sessions.Load())
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	r.GET("/", h.Home)
	r.GET("/absen", h.Absen)
	r.GET("/rekap", h.Rekap)
	r.GET("/rekap/:user_id", h.RekapUser)
	r.GET("/stats", h.Stats)

	return r, nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
