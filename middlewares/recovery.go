package middlewares

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-reservations/services"
	"github.com/yeremiapane/table-reservations/utils"
)

// RecoveryMiddleware turns panics into JSON errors. A panicking
// *services.ServerError keeps its status, anything else becomes 500.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			var se *services.ServerError
			if err, ok := rec.(error); ok && errors.As(err, &se) {
				utils.RespondError(c, se.Code, se)
				c.Abort()
				return
			}

			utils.ErrorLogger.Printf("panic serving %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, rec, debug.Stack())
			utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
			c.Abort()
		}()

		c.Next()
	}
}
