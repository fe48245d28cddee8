package status

import (
	"context"
	"net/http"
	"time"

	"github.com/ClipFinance/stargate-bridger/route"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const defaultShutdownTimeout = 5 * time.Second

// ServerOptions configure the status server.
type ServerOptions struct {
	Address         string        // Listen address, e.g. ":8080".
	AllowedOrigins  []string      // CORS origins, "*" allows any.
	ShutdownTimeout time.Duration // Grace period for in-flight requests.
}

// routeView is the JSON form of a route.
type routeView struct {
	Code        string `json:"code"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Refuel      bool   `json:"refuel"`
}

// Server serves the store and metrics.
type Server struct {
	http     *http.Server
	shutdown time.Duration
	logger   *logrus.Logger
}

// NewRouter builds the gin engine.
//
// Parameters:
// - store: the state to serve.
// - gatherer: the metrics source for /metrics.
// - origins: the allowed CORS origins.
// - logger: the logger for requests.
//
// Returns:
// - *gin.Engine: the router.
func NewRouter(store *Store, gatherer prometheus.Gatherer, origins []string, logger *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.Use(cors.New(corsConfig(origins)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		api.GET("/legs", func(c *gin.Context) {
			c.JSON(http.StatusOK, store.Legs())
		})
		api.GET("/wallets/:address/legs", func(c *gin.Context) {
			c.JSON(http.StatusOK, store.WalletLegs(c.Param("address")))
		})
		api.GET("/balances", func(c *gin.Context) {
			c.JSON(http.StatusOK, store.Balances())
		})
		api.GET("/routes", func(c *gin.Context) {
			routes := route.All()
			views := make([]routeView, 0, len(routes))
			for _, rt := range routes {
				views = append(views, routeView{
					Code:        rt.Code,
					Source:      rt.Source.String(),
					Destination: rt.Destination.String(),
					Refuel:      rt.Refuelable(),
				})
			}
			c.JSON(http.StatusOK, views)
		})
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("Status request")
	}
}

// NewServer creates a status server.
func NewServer(opts ServerOptions, store *Store, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		http: &http.Server{
			Addr:              opts.Address,
			Handler:           NewRouter(store, gatherer, opts.AllowedOrigins, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdown: opts.ShutdownTimeout,
		logger:   logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
//
// Parameters:
// - ctx: the context whose cancellation stops the server.
//
// Returns:
// - error: an error if the listener fails or shutdown times out.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", s.http.Addr).Info("Status server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "status server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdown)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "status server shutdown")
	}
	s.logger.Info("Status server stopped")
	return nil
}
