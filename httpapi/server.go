package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	identity "github.com/stocktrack/identity"
)

const requestBodyLimit = "16K"

// errorEnvelope is the uniform error body. Status repeats the HTTP code so
// clients behind status-rewriting proxies still see it.
type errorEnvelope struct {
	Error   bool   `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Server hosts the public and internal HTTP surfaces over one engine.
type Server struct {
	engine   *identity.Engine
	public   *echo.Echo
	internal *echo.Echo
}

// New wires both surfaces. Neither listens until StartPublic/StartInternal.
func New(engine *identity.Engine) *Server {
	s := &Server{engine: engine}

	s.public = newEcho()
	s.public.POST("/users/login", s.handleLogin)
	s.public.POST("/users/refresh", s.handleRefresh)

	s.internal = newEcho()
	s.internal.POST("/users/password", s.handleSetPassword)
	s.internal.GET("/health", handleHealth)

	return s
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(requestBodyLimit))
	e.Use(requireAcceptsJSON)
	return e
}

// requireAcceptsJSON rejects callers that cannot accept a JSON response with
// a bare 400, before any handler runs. An absent Accept header is consent.
func requireAcceptsJSON(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accept := c.Request().Header.Get(echo.HeaderAccept)
		if accept == "" ||
			strings.Contains(accept, "json") ||
			strings.Contains(accept, "*/*") {
			return next(c)
		}
		return c.NoContent(http.StatusBadRequest)
	}
}

// Public returns the public-surface handler, for tests and embedding.
func (s *Server) Public() http.Handler { return s.public }

// Internal returns the internal-surface handler.
func (s *Server) Internal() http.Handler { return s.internal }

// StartPublic serves the credential flows. Blocks until shutdown or failure.
func (s *Server) StartPublic(address string) error {
	return s.public.Start(address)
}

// StartInternal serves the administrative surface.
func (s *Server) StartInternal(address string) error {
	return s.internal.Start(address)
}

// Shutdown drains both surfaces.
func (s *Server) Shutdown(ctx context.Context) error {
	pubErr := s.public.Shutdown(ctx)
	intErr := s.internal.Shutdown(ctx)
	if pubErr != nil {
		return pubErr
	}
	return intErr
}

// errorHandler renders every handler error into the envelope. Engine errors
// carry their own status mapping; anything unrecognized is reported as the
// generic internal message so storage and signing detail stays server-side.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := identity.ErrInternal.Message

	var engineErr *identity.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &engineErr):
		status = engineErr.Status()
		message = engineErr.Message
		if status >= 500 && !errors.Is(err, identity.ErrWriteNotAcknowledged) {
			message = identity.ErrInternal.Message
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	}

	if status >= 500 {
		c.Logger().Error(err)
	}

	if err := c.JSON(status, errorEnvelope{Error: true, Status: status, Message: message}); err != nil {
		c.Logger().Error(err)
	}
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
