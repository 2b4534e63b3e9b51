package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/thomas-mindruptive/pure-svelte-sub003/cascade"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

type deleteResponse struct {
	OpID string `json:"op_id"`
	cascade.Result
}

type conflictResponse struct {
	tools.APIError
	OpID string `json:"op_id"`
	cascade.Conflict
}

// parseKey splits "/4/9" into primary key values. IDs are positive decimal integers.
func parseKey(path string) (cascade.Key, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("%w: missing id", tools.ErrInvalidKey)
	}

	parts := strings.Split(path, "/")
	key := make(cascade.Key, len(parts))
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q is not a positive integer id", tools.ErrInvalidKey, p)
		}
		key[i] = id
	}
	return key, nil
}

func (h *Handler) handleDependencies(c *gin.Context) {
	key, err := parseKey(c.Param("key"))
	if err != nil {
		respondErr(c, err)
		return
	}

	deps, err := h.deletes.Dependencies(c.Request.Context(), c.Param("kind"), key)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, deps)
}

func (h *Handler) handleDelete(c *gin.Context) {
	kind := c.Param("kind")
	key, err := parseKey(c.Param("key"))
	if err != nil {
		respondErr(c, err)
		return
	}

	opts := cascade.Options{
		Cascade:      cast.ToBool(c.Query("cascade")),
		ForceCascade: cast.ToBool(c.Query("forceCascade")),
	}

	res, opID, err := h.deletes.Delete(c.Request.Context(), kind, key, opts)
	c.Header("X-Operation-ID", opID)
	if err != nil {
		respondErr(c, err)
		return
	}

	switch res.Outcome {
	case cascade.OutcomeNotFound:
		respondErr(c, tools.EntityNotFoundErr(kind, key))
	case cascade.OutcomeConflict:
		status, apiErr := tools.BuildAPIError(fmt.Errorf("%w: %s %s", tools.ErrDependencyConflict, kind, key))
		if res.Conflict.CascadeAvailable {
			apiErr.Hint = "Retry with cascade=true to also delete the listed records."
		} else {
			apiErr.Hint = "Records of business history depend on this entity. Retry with forceCascade=true to remove them as well."
		}
		c.AbortWithStatusJSON(status, conflictResponse{APIError: apiErr, OpID: opID, Conflict: *res.Conflict})
	default:
		c.JSON(http.StatusOK, deleteResponse{OpID: opID, Result: res})
	}
}
