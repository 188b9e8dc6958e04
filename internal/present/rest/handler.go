package rest

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/totegamma/oaipmh/internal/present/rest/presenter"
)

// Protocol answers a single OAI-PMH request.
type Protocol interface {
	Handle(ctx context.Context, baseURL string, params map[string]string) (string, error)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	protocol Protocol
	baseURL  string
	gatherer prometheus.Gatherer
	checks   map[string]HealthCheck
}

// NewHandler builds the HTTP handler. An empty baseURL is derived from each
// request.
func NewHandler(
	protocol Protocol,
	baseURL string,
	gatherer prometheus.Gatherer,
	checks map[string]HealthCheck,
) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		protocol: protocol,
		baseURL:  baseURL,
		gatherer: gatherer,
		checks:   checks,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/oai", h.handleOAI)
	e.POST("/oai", h.handleOAI)
	e.GET("/healthz", h.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}

func (h *Handler) handleOAI(c echo.Context) error {
	ctx := c.Request().Context()

	params, err := requestParams(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	body, err := h.protocol.Handle(ctx, h.requestBaseURL(c), params)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.XML(c, body)
}

func (h *Handler) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			return presenter.Unavailable(c, &checkError{name: name, err: err})
		}
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type checkError struct {
	name string
	err  error
}

func (e *checkError) Error() string { return e.name + ": " + e.err.Error() }
func (e *checkError) Unwrap() error { return e.err }

// requestParams flattens query and form arguments. For POST the form body
// wins over the query string.
func requestParams(c echo.Context) (map[string]string, error) {
	params := map[string]string{}
	for key, values := range c.QueryParams() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	if c.Request().Method != http.MethodPost {
		return params, nil
	}

	form, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	for key, values := range form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params, nil
}

func (h *Handler) requestBaseURL(c echo.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	req := c.Request()
	return c.Scheme() + "://" + req.Host + req.URL.Path
}
