package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
)

// loggerMiddleware adds a zap logger to the request context
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := zapctx.WithLogger(c.Request.Context(), logger)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
