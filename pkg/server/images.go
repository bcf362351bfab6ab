package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"dreamer/pkg/schema"
)

type generateImageReq struct {
	Prompt   string `json:"prompt"`
	RecordID string `json:"record_id,omitempty"`
}

type generateImageResp struct {
	ImageURL string `json:"imageUrl"`
}

// POST /api/generate-image
//
// prompt defaults to the record's image_prompt when record_id is given.
func (s *Server) handlePostGenerateImage(c echo.Context) error {
	var req generateImageReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" && req.RecordID != "" {
		if rec, ok := s.Store.Get(req.RecordID); ok {
			req.Prompt = rec.Analysis.ImagePrompt
		}
	}

	url, err := s.Generate.Image(c.Request().Context(), req.Prompt, req.RecordID)
	if err != nil {
		return s.fail(c, err, "image generation failed")
	}

	if req.RecordID != "" {
		s.Store.Update(req.RecordID, schema.Patch{ImageURL: &url})
	}
	return c.JSON(http.StatusOK, generateImageResp{ImageURL: url})
}

type generateVideoReq struct {
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
	RecordID string `json:"record_id,omitempty"`
}

type generateVideoResp struct {
	VideoURL string `json:"videoUrl"`
}

// POST /api/generate-video
//
// imageUrl may be omitted when record_id names a record that already has
// an image. Without either the request is rejected.
func (s *Server) handlePostGenerateVideo(c echo.Context) error {
	var req generateVideoReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if strings.TrimSpace(req.ImageURL) == "" && req.RecordID != "" {
		if rec, ok := s.Store.Get(req.RecordID); ok {
			req.ImageURL = rec.ImageURL
		}
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "an image is required to generate a video")
	}

	url, err := s.Generate.Video(c.Request().Context(), req.ImageURL, req.Prompt, req.RecordID)
	if err != nil {
		return s.fail(c, err, "video generation failed")
	}

	if req.RecordID != "" {
		s.Store.Update(req.RecordID, schema.Patch{VideoURL: &url})
	}
	return c.JSON(http.StatusOK, generateVideoResp{VideoURL: url})
}

// GET /api/video-relay?url=
//
// "Cache-Control: no-cache" on the request skips the relay cache.
func (s *Server) handleGetVideoRelay(c echo.Context) error {
	ctx := c.Request().Context()
	source := c.QueryParam("url")

	fetch := s.Relay.Fetch
	if c.Request().Header.Get("Cache-Control") == "no-cache" {
		fetch = s.Relay.Refetch
	}
	media, err := fetch(ctx, source)
	if err != nil {
		return s.fail(c, err, "failed to fetch media")
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentLength, strconv.Itoa(media.ContentLength()))
	h.Set(echo.HeaderContentDisposition, `attachment; filename="dream_video.mp4"`)
	h.Set("Cache-Control", "public, max-age=31536000")
	log.Debug("relaying media", "bytes", media.ContentLength(), "type", media.ContentType)
	return c.Blob(http.StatusOK, media.ContentType, media.Data)
}
