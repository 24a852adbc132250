package relayer

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinHandler adapts the relayer core to a gin route.
//
//	router := gin.Default()
//	router.POST("/relay", relayer.GinHandler(server))
func GinHandler(server *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, &Response{
				Error: &ErrorDetail{Message: "failed to read request body"},
			})
			return
		}

		status, response := server.Handle(c.Request.Context(), body)
		c.JSON(status, response)
	}
}
