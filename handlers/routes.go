// Package handlers exposes the catalog query compiler and the cascading
// delete service over HTTP.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thomas-mindruptive/pure-svelte-sub003/cascade"
	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Options tune the HTTP surface.
type Options struct {
	RequestTimeout  time.Duration
	MaxRequestBody  int64
	RawWhereEnabled bool
}

// Handler holds the dependencies shared by all routes.
type Handler struct {
	db      *daos.Database
	queries *query.Config
	deletes *cascade.Service
	log     tools.Logger
	opts    Options
}

// New returns a handler for db and the compiled query configuration.
func New(db *daos.Database, queries *query.Config, log tools.Logger, opts Options) *Handler {
	if log == nil {
		log = tools.NewNopLogger()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxRequestBody <= 0 {
		opts.MaxRequestBody = 1 << 20
	}
	return &Handler{
		db:      db,
		queries: queries,
		deletes: cascade.NewService(db, log.With(tools.String("component", "cascade"))),
		log:     log,
		opts:    opts,
	}
}

// Router builds the gin engine with middleware and routes.
//
// Routes:
//   - GET /health
//   - POST /query/:entity - compile and run a query payload
//   - POST /query/:entity/named/:name - same, through a predefined query
//   - POST /query/:entity/compile - compile only, no database access
//   - POST /query/:entity/raw - raw WHERE escape hatch, when enabled
//   - GET /dependencies/:kind/*key - dependency report without deleting
//   - DELETE /entities/:kind/*key?cascade=true&forceCascade=true
//
// Keys are one path segment per primary key column, e.g.
// /entities/wholesaler_category/4/9.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(
		RequestID(),
		Logging(h.log),
		Recovery(h.log),
		Timeout(h.opts.RequestTimeout),
		BodyLimit(h.opts.MaxRequestBody),
	)

	r.GET("/health", h.handleHealth)

	q := r.Group("/query/:entity")
	q.POST("", h.handleQuery)
	q.POST("/named/:name", h.handleNamedQuery)
	q.POST("/compile", h.handleCompile)
	if h.opts.RawWhereEnabled {
		q.POST("/raw", h.handleRawQuery)
	}

	r.GET("/dependencies/:kind/*key", h.handleDependencies)
	r.DELETE("/entities/:kind/*key", h.handleDelete)

	r.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, tools.APIError{Code: "NOT_FOUND", Message: "route not found"})
	})

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	if err := h.db.Client.PingContext(c.Request.Context()); err != nil {
		tools.RespErr(c, daos.Classify("ping", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dialect": h.db.Dialect})
}
