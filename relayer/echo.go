package relayer

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// EchoHandler adapts the relayer core to an echo route.
//
//	e := echo.New()
//	e.POST("/relay", relayer.EchoHandler(server))
func EchoHandler(server *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, &Response{
				Error: &ErrorDetail{Message: "failed to read request body"},
			})
		}

		status, response := server.Handle(c.Request().Context(), body)
		return c.JSON(status, response)
	}
}
