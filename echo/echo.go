// Package echo provides reqwire integration for the Echo web framework.
//
// This package wraps a compiled resolution plan into an Echo handler: per
// request it builds a connection from the Echo context, runs extraction and
// dependency resolution, invokes the wrapped handler with the populated
// values, and releases scoped resources when the handler returns.
//
// Example usage:
//
//	plan, _ := reqwire.Compile(reqwire.CompileOptions{ ... })
//
//	e := echo.New()
//	e.GET("/users/:id", reqecho.Handle(plan, func(c echo.Context, values *reqwire.Values) error {
//		repo, _ := values.Get("repo")
//		...
//	}))
package echo

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reqwire/reqwire"
)

// HandlerFunc is the handler shape the wrapper invokes: the Echo context
// plus the extracted and resolved values for this request.
type HandlerFunc func(c echo.Context, values *reqwire.Values) error

// Config holds the configuration for the Handle wrapper.
type Config struct {
	// State is the process-wide shared state attached to each connection.
	// If nil, each connection gets a fresh empty State.
	State *reqwire.State

	// ExtractionErrorHandler is called when parameter extraction or body
	// decoding fails. The default maps these to 400 responses.
	ExtractionErrorHandler func(echo.Context, error) error

	// ResolutionErrorHandler is called when a dependency provider fails.
	// The default maps these to 500 responses.
	ResolutionErrorHandler func(echo.Context, error) error

	// CloseErrorHandler is called when releasing scoped resources fails.
	// If nil, errors are logged using slog.
	CloseErrorHandler func(error)
}

// Option configures the Handle wrapper.
type Option func(*Config)

// WithState attaches shared application state to every connection.
func WithState(state *reqwire.State) Option {
	return func(c *Config) {
		c.State = state
	}
}

// WithExtractionErrorHandler sets the error handler for extraction failures.
func WithExtractionErrorHandler(h func(echo.Context, error) error) Option {
	return func(c *Config) {
		c.ExtractionErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for provider failures.
func WithResolutionErrorHandler(h func(echo.Context, error) error) Option {
	return func(c *Config) {
		c.ResolutionErrorHandler = h
	}
}

// WithCloseErrorHandler sets the error handler for resource release failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) {
		c.CloseErrorHandler = h
	}
}

func defaultConfig() *Config {
	return &Config{
		ExtractionErrorHandler: func(c echo.Context, err error) error {
			var missing *reqwire.MissingParameterError
			if errors.As(err, &missing) {
				return echo.NewHTTPError(http.StatusBadRequest, missing.Error())
			}
			var decode *reqwire.BodyDecodeError
			if errors.As(err, &decode) {
				return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
			}
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
		},
		ResolutionErrorHandler: func(c echo.Context, err error) error {
			slog.Error("failed to resolve dependencies", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
		},
		CloseErrorHandler: func(err error) {
			slog.Error("failed to release scoped resources", "error", err)
		},
	}
}

// Handle wraps a compiled plan and a handler into an Echo handler.
//
// Path parameters matched by Echo's router are handed to the connection, so
// the plan's path-parameter names must match the route's.
func Handle(plan *reqwire.Plan, handler HandlerFunc, opts ...Option) echo.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c echo.Context) error {
		connOpts := []reqwire.ConnectionOption{
			reqwire.WithPathParams(pathParams(c)),
		}
		if cfg.State != nil {
			connOpts = append(connOpts, reqwire.WithState(cfg.State))
		}
		conn := reqwire.NewConnection(c.Request(), connOpts...)

		values := reqwire.NewValues()
		if err := plan.Extract(values, conn); err != nil {
			return cfg.ExtractionErrorHandler(c, err)
		}

		ctx := c.Request().Context()
		cleanup, err := plan.ResolveDependencies(ctx, values)
		defer func() {
			if closeErr := cleanup.Close(ctx); closeErr != nil {
				cfg.CloseErrorHandler(closeErr)
			}
		}()
		if err != nil {
			return cfg.ResolutionErrorHandler(c, err)
		}

		if handlerErr := handler(c, values); handlerErr != nil {
			var decode *reqwire.BodyDecodeError
			if errors.As(handlerErr, &decode) {
				return cfg.ExtractionErrorHandler(c, handlerErr)
			}
			return handlerErr
		}
		return nil
	}
}

func pathParams(c echo.Context) map[string]string {
	names := c.ParamNames()
	params := make(map[string]string, len(names))
	for _, name := range names {
		params[name] = c.Param(name)
	}
	return params
}
