package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/emberhq/embersync/internal/locsync"
	"github.com/emberhq/embersync/internal/observability"
	"github.com/emberhq/embersync/internal/program"
)

// Admin is the read-only HTTP surface next to the sync port: health, metrics,
// and a status snapshot for whoever is wiring up a companion.
type Admin struct {
	ID   string
	Addr string

	srv      *Server
	session  *program.Session
	state    *locsync.State
	router   *gin.Engine
	appeared time.Time
}

func NewAdmin(id, addrStr string, srv *Server, session *program.Session, state *locsync.State, corsOrigins []string) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Admin{
		ID:       id,
		Addr:     addrStr,
		srv:      srv,
		session:  session,
		state:    state,
		router:   r,
		appeared: time.Now(),
	}
}

func (a *Admin) HTTPRouter() *gin.Engine {
	return a.router
}

func (a *Admin) RegisterRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.appeared).String(),
			"service": a.ID,
			"version": "0.0.1",
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   a.srv.Phase() == PhaseListening,
			"uptime":  time.Since(a.appeared).String(),
			"service": a.ID,
			"version": "0.0.1",
		})
	})

	a.router.GET("/status", func(c *gin.Context) {
		payload := gin.H{
			"phase":          a.srv.Phase(),
			"active_clients": a.srv.ActiveClients(),
		}
		if prog, ok := a.session.Current(); ok {
			payload["program"] = gin.H{
				"name":       prog.Name,
				"image_base": prog.ImageBase.String(),
				"width":      int(prog.Width),
			}
		}
		if address, ok := a.state.Get(); ok {
			payload["last_address"] = address.String()
		}
		c.JSON(http.StatusOK, payload)
	})
}

func (a *Admin) Serve() error {
	a.RegisterRoutes()
	return a.router.Run(a.Addr)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
