package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dreamer/pkg/persona"
	"dreamer/pkg/schema"
)

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "Dreamer API",
		"status":  "ok",
	})
}

func (s *Server) handleGetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/dreams
func (s *Server) handleGetDreams(c echo.Context) error {
	records := s.Store.List()
	if records == nil {
		records = []schema.DreamRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

// GET /api/dreams/:id
func (s *Server) handleGetDream(c echo.Context) error {
	rec, ok := s.Store.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "dream not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// GET /api/persona
func (s *Server) handleGetPersona(c echo.Context) error {
	return c.JSON(http.StatusOK, persona.Summarize(s.Store.List()))
}
