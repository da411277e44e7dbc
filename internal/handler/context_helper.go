package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
	"github.com/noah-isme/vigilia-api/pkg/response"
)

// bindJSON decodes the body and writes a validation error when it is malformed.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, dest interface{}, message string) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dest, message)
}

// expectedVersion prefers the body version and falls back to an If-Match header such as "3" or W/"3".
func expectedVersion(c *gin.Context, bodyVersion int) int {
	if bodyVersion != 0 {
		return bodyVersion
	}
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return 0
}
