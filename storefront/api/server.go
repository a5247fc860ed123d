// Package api exposes storefront sessions over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/atelier-storefront/pkg/metrics"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
	"github.com/tanpawarit/atelier-storefront/storefront/session"
)

const defaultSettleWait = 10 * time.Second

type Options struct {
	// SettleWait bounds how long GET .../search waits for results.
	SettleWait time.Duration
}

type Server struct {
	sessions *session.Manager
	catalog  contract.ProductCatalog
	opts     Options
}

func NewServer(sessions *session.Manager, catalog contract.ProductCatalog, opts Options) *Server {
	if opts.SettleWait <= 0 {
		opts.SettleWait = defaultSettleWait
	}
	return &Server{sessions: sessions, catalog: catalog, opts: opts}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	router := gin.New()
	router.Use(Recovery(), RequestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, SuccessResponse(c, "ok", nil))
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.GET("/tools", s.listTools)
	v1.GET("/products/:id", s.getProduct)

	sessions := v1.Group("/sessions")
	{
		sessions.POST("", s.createSession)
		sessions.DELETE("/:id", s.closeSession)

		sessions.GET("/:id/search", s.getSearch)
		sessions.POST("/:id/search/refine", s.refineSearch)
		sessions.GET("/:id/route", s.getRoute)
		sessions.GET("/:id/summary", s.getSummary)

		sessions.GET("/:id/cart", s.getCart)
		sessions.DELETE("/:id/cart", s.clearCart)
		sessions.POST("/:id/cart/items", s.addCartItem)
		sessions.PATCH("/:id/cart/items/:productId", s.updateCartItem)
		sessions.DELETE("/:id/cart/items/:productId", s.removeCartItem)

		sessions.POST("/:id/tool-calls", s.observeToolCall)
		sessions.GET("/:id/tool-results", s.drainToolResults)
	}
	return router
}

// session resolves the path session, rebuilding it from its snapshot when needed.
func (s *Server) session(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return sess, true
}

// persist saves the session snapshot. Failures are logged, never surfaced.
func (s *Server) persist(ctx context.Context, id string) {
	if err := s.sessions.Persist(ctx, id); err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("failed to persist session")
	}
}
