// Package api exposes the core's request API over HTTP. Operations
// are addressed by message name inside a small envelope, posted to
// /read, /write or /execute depending on the kind of access they
// need. Every request is authenticated against the users collection.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/monitordev/monitor/internal/accounts"
	"github.com/monitordev/monitor/internal/actions"
	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/resources"
	"github.com/monitordev/monitor/internal/search"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// Auth headers.
const (
	APIKeyHeader    = "X-Api-Key"
	APISecretHeader = "X-Api-Secret"
)

const userContextKey = "monitor-user"

// Server is the HTTP API server.
type Server struct {
	Store     *store.Client
	Resources *resources.Manager
	Actions   *actions.Dispatcher
	Search    *search.Searcher
	Accounts  *accounts.Resolver

	echo     *echo.Echo
	handlers registry
	logger   *slog.Logger
}

// envelope is the request wrapper: a message name plus its params.
type envelope struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// handlerFunc resolves one message type.
type handlerFunc func(ctx context.Context, user *types.User, params json.RawMessage) (any, error)

type registry struct {
	read    map[string]handlerFunc
	write   map[string]handlerFunc
	execute map[string]handlerFunc
}

// NewServer wires the API server and its routes.
func NewServer(st *store.Client, res *resources.Manager, dispatcher *actions.Dispatcher, searcher *search.Searcher, resolver *accounts.Resolver) *Server {
	s := &Server{
		Store:     st,
		Resources: res,
		Actions:   dispatcher,
		Search:    searcher,
		Accounts:  resolver,
		echo:      echo.New(),
		logger:    util.With("component", "api"),
	}
	s.handlers = s.buildRegistry()

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())

	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	authed := s.echo.Group("", s.authMiddleware)
	authed.POST("/read", s.dispatch(s.handlers.read))
	authed.POST("/write", s.dispatch(s.handlers.write))
	authed.POST("/execute", s.dispatch(s.handlers.execute))
	return s
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, listen string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(listen)
	}()
	select {
	case <-ctx.Done():
		return s.echo.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler exposes the underlying http handler, for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// authMiddleware resolves the calling user from the api key headers.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		username := c.Request().Header.Get(APIKeyHeader)
		secret := c.Request().Header.Get(APISecretHeader)
		if username == "" || secret == "" {
			return errorResponse(c, errors.New(errors.KindForbidden, "missing api credentials"))
		}

		users, err := s.Store.Users.GetSome(c.Request().Context(), store.Filter{
			store.Eq("username", username),
		}, nil)
		if err != nil {
			return errorResponse(c, err)
		}
		if len(users) == 0 {
			return errorResponse(c, errors.New(errors.KindForbidden, "invalid api credentials"))
		}
		user := users[0]
		if err := bcrypt.CompareHashAndPassword([]byte(user.SecretHash), []byte(secret)); err != nil {
			return errorResponse(c, errors.New(errors.KindForbidden, "invalid api credentials"))
		}
		if !user.Enabled {
			return errorResponse(c, errors.New(errors.KindForbidden, "user is disabled"))
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// dispatch routes an envelope to its handler.
func (s *Server) dispatch(handlers map[string]handlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req envelope
		if err := c.Bind(&req); err != nil {
			return errorResponse(c, errors.Wrap(errors.KindValidation, "malformed request envelope", err))
		}
		handler, ok := handlers[req.Type]
		if !ok {
			return errorResponse(c, errors.Newf(errors.KindValidation, "unknown request type %q", req.Type))
		}

		user := c.Get(userContextKey).(*types.User)
		result, err := handler(c.Request().Context(), user, req.Params)
		if err != nil {
			s.logger.Warn("request failed",
				"type", req.Type, "user", user.Username, "err", err)
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}
}

func errorResponse(c echo.Context, err error) error {
	kind := errors.KindOf(err)
	return c.JSON(statusFor(kind), map[string]string{
		"kind":  string(kind),
		"error": err.Error(),
	})
}

func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindForbidden:
		return http.StatusForbidden
	case errors.KindDuplicateName, errors.KindDuplicateKey:
		return http.StatusConflict
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindPeripheryUnreachable:
		return http.StatusBadGateway
	case errors.KindPeripheryBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode unmarshals params into a typed struct. Missing params decode
// as the zero value.
func decode[T any](params json.RawMessage) (T, error) {
	var out T
	if len(params) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(params, &out); err != nil {
		return out, errors.Wrap(errors.KindValidation, "malformed request params", err)
	}
	return out, nil
}
