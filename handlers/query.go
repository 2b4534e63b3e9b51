package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cast"

	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

type queryResponse struct {
	Data     []daos.Row     `json:"data"`
	Metadata query.Metadata `json:"metadata"`
	Total    *int64         `json:"total,omitempty"`
}

type rawQueryRequest struct {
	Where string `json:"where" binding:"required"`
}

func (h *Handler) handleQuery(c *gin.Context) {
	h.runQuery(c, query.Target{Entity: c.Param("entity")})
}

func (h *Handler) handleNamedQuery(c *gin.Context) {
	h.runQuery(c, query.Target{Entity: c.Param("entity"), NamedQuery: c.Param("name")})
}

// handleCompile returns the SQL a payload compiles to without running it.
func (h *Handler) handleCompile(c *gin.Context) {
	payload, err := decodePayload(c)
	if err != nil {
		respondErr(c, err)
		return
	}

	compiled, err := query.Compile(payload, h.queries, query.Target{
		Entity:     c.Param("entity"),
		NamedQuery: c.Query("named"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, compiled)
}

func (h *Handler) handleRawQuery(c *gin.Context) {
	var req rawQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, fmt.Errorf("%w: %w", tools.ErrInvalidJSON, err))
		return
	}

	compiled, err := query.CompileRaw(c.Param("entity"), req.Where, h.queries)
	if err != nil {
		respondErr(c, err)
		return
	}

	rows, err := daos.Query(c.Request.Context(), h.db.Client, compiled)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, queryResponse{Data: rows, Metadata: compiled.Metadata})
}

// runQuery compiles the payload for target and executes it. With ?count=true
// the total row count is computed in the same transaction.
func (h *Handler) runQuery(c *gin.Context, target query.Target) {
	payload, err := decodePayload(c)
	if err != nil {
		respondErr(c, err)
		return
	}

	compiled, err := query.Compile(payload, h.queries, target)
	if err != nil {
		respondErr(c, err)
		return
	}

	ctx := c.Request.Context()
	if !cast.ToBool(c.Query("count")) {
		rows, err := daos.Query(ctx, h.db.Client, compiled)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, queryResponse{Data: rows, Metadata: compiled.Metadata})
		return
	}

	counted, err := query.CompileCount(payload, h.queries, target)
	if err != nil {
		respondErr(c, err)
		return
	}

	var (
		rows  []daos.Row
		total int64
	)
	err = h.db.WithTx(ctx, &sql.TxOptions{ReadOnly: h.db.Dialect == query.Postgres}, func(tx *sqlx.Tx) error {
		var err error
		if rows, err = daos.Query(ctx, tx, compiled); err != nil {
			return err
		}
		total, err = daos.Count(ctx, tx, counted)
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.JSON(http.StatusOK, queryResponse{Data: rows, Metadata: compiled.Metadata, Total: &total})
}

// decodePayload reads the query payload. An empty body is an empty payload.
func decodePayload(c *gin.Context) (*query.Payload, error) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return &query.Payload{}, nil
	}
	return query.DecodePayload(c.Request.Body)
}

// respondErr writes the error response, using 413 for oversized bodies.
func respondErr(c *gin.Context, err error) {
	_ = c.Error(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, tools.APIError{
			Code:    tools.CodeInvalidJSON,
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	tools.RespErr(c, err)
}
