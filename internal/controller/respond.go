// Package controller adapts the order services to gin handlers.
package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/dto"
	"storefront-orders/internal/service"
)

func ok(c *gin.Context, code int, data any) {
	c.JSON(code, dto.Response{Success: true, Data: data})
}

func okPage(c *gin.Context, page *service.OrderPage) {
	p := page.Pagination
	c.JSON(http.StatusOK, dto.Response{Success: true, Data: page.Orders, Pagination: &p})
}

func fail(c *gin.Context, err error) {
	c.JSON(apperr.StatusCode(err), dto.Response{Success: false, Message: apperr.Message(err)})
}

// bind decodes the JSON body into req and reports a validation error
// otherwise.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, apperr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return n, nil
}
