package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"dreamer/pkg/analysis"
	"dreamer/pkg/schema"
)

type chatReq struct {
	Messages []schema.Message `json:"messages"`
}

type chatResp struct {
	Reply string `json:"reply"`
}

// POST /api/chat
func (s *Server) handlePostChat(c echo.Context) error {
	var req chatReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	reply, err := s.Analysis.Interview(c.Request().Context(), req.Messages)
	if err != nil {
		return s.fail(c, err, "chat service temporarily unavailable")
	}
	return c.JSON(http.StatusOK, chatResp{Reply: reply})
}

type analyzeResp struct {
	RecordID string `json:"record_id,omitempty"`
	schema.Analysis
}

// POST /api/analyze
//
// A record is stored for every successful analysis. record_id is omitted
// when the store could not persist it.
func (s *Server) handlePostAnalyze(c echo.Context) error {
	var in analysis.Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	result, err := s.Analysis.Analyze(c.Request().Context(), in)
	if err != nil {
		return s.fail(c, err, "analysis failed, please try again later")
	}

	resp := analyzeResp{Analysis: result}
	rec := s.Store.NewRecord(in.Subject(), result)
	if snapshot := s.Store.Insert(rec); len(snapshot) > 0 && snapshot[0].ID == rec.ID {
		resp.RecordID = rec.ID
	} else {
		log.Warn("analysis returned without a record", "dream", len(in.Subject()))
	}
	return c.JSON(http.StatusOK, resp)
}
