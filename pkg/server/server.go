package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"dreamer/pkg/analysis"
	"dreamer/pkg/errs"
	"dreamer/pkg/generate"
	"dreamer/pkg/metrics"
	"dreamer/pkg/provider"
	"dreamer/pkg/relay"
	"dreamer/pkg/store"
	"dreamer/pkg/utils"
)

type Server struct {
	Echo     *echo.Echo
	Analysis *analysis.Service
	Generate *generate.Coordinator
	Relay    *relay.Relay
	Store    *store.Records
	Metrics  *metrics.Metrics
	// Ctx is cancelled on shutdown. Generation jobs outlive their requests
	// and stop with it.
	Ctx context.Context
}

type Deps struct {
	Analysis *analysis.Service
	Generate *generate.Coordinator
	Relay    *relay.Relay
	Store    *store.Records
	Metrics  *metrics.Metrics
}

func NewServer(ctx context.Context, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &Server{
		Echo:     e,
		Analysis: deps.Analysis,
		Generate: deps.Generate,
		Relay:    deps.Relay,
		Store:    deps.Store,
		Metrics:  deps.Metrics,
		Ctx:      ctx,
	}
	s.observe()

	s.registerRoutes()
	return s
}

// observe routes component callbacks into the prometheus collectors.
func (s *Server) observe() {
	if s.Analysis != nil {
		s.Analysis.OnAnalysis = s.Metrics.ObserveAnalysis
	}
	if s.Generate != nil {
		s.Generate.Base = s.Ctx
		s.Generate.OnJob = func(kind provider.Kind, outcome string, attempts int) {
			s.Metrics.ObserveJob(string(kind), outcome, attempts)
		}
	}
	if s.Relay != nil {
		s.Relay.OnFetch = s.Metrics.ObserveRelay
	}
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)
	s.Echo.GET("/health", s.handleGetHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))

	api := s.Echo.Group("/api")
	api.POST("/chat", s.handlePostChat)                    // interviewer turn -> {reply}
	api.POST("/analyze", s.handlePostAnalyze)              // dream or interview -> analysis + record_id
	api.POST("/generate-image", s.handlePostGenerateImage) // prompt -> {imageUrl}
	api.POST("/generate-video", s.handlePostGenerateVideo) // still -> {videoUrl}, relay wrapped
	api.GET("/video-relay", s.handleGetVideoRelay)

	api.GET("/dreams", s.handleGetDreams)
	api.GET("/dreams/:id", s.handleGetDream)
	api.GET("/persona", s.handleGetPersona)
}

func (s *Server) Start(addr string) error {
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")
	return s.Echo.Shutdown(ctx)
}

// fail answers with the status and public message for err. Details stay
// in the log.
func (s *Server) fail(c echo.Context, err error, fallback string) error {
	if errors.Is(err, context.Canceled) {
		log.Warn("request cancelled", "path", c.Path())
		return c.NoContent(499)
	}

	status := errs.Status(err)
	msg := errs.Public(err, fallback)
	if status < http.StatusInternalServerError {
		log.Warn("request rejected", "path", c.Path(), "status", status, "err", err)
		return echo.NewHTTPError(status, msg)
	}
	log.Error("request failed", "path", c.Path(), "status", status, "err", err)
	return c.JSON(status, utils.ErrJSON(msg))
}

// errorHandler renders echo errors in the same shape as utils.ErrJSON.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, utils.ErrJSON(msg))
	}
	if err != nil {
		log.Error("failed writing error response", "err", err)
	}
}
