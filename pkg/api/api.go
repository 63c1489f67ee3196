// Package api implements the REST API for parsing and evaluating tag
// expressions and for managing stored selectors.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/tagexpr/pkg/observability"
	"github.com/lemonberrylabs/tagexpr/pkg/store"
	"github.com/lemonberrylabs/tagexpr/pkg/tagexpr"
)

// Server is the REST API server.
type Server struct {
	app     *fiber.App
	store   store.Store
	logger  *slog.Logger
	metrics observability.Recorder
	tracer  observability.Tracer
	points  *observability.Provider
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRecorder sets the metrics recorder. The default records nothing.
func WithRecorder(r observability.Recorder) Option {
	return func(s *Server) { s.metrics = r }
}

// WithTracer sets the tracer. The default records nothing.
func WithTracer(t observability.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithMetricsEndpoint serves the counters collected by p at GET /v1/metrics.
func WithMetricsEndpoint(p *observability.Provider) Option {
	return func(s *Server) { s.points = p }
}

// New creates a new API server backed by st.
func New(st store.Store, opts ...Option) *Server {
	srv := &Server{
		store:   st,
		logger:  slog.Default(),
		metrics: observability.Noop{},
		tracer:  observability.NoopTracer{},
	}
	for _, opt := range opts {
		opt(srv)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	// Expressions API
	app.Post("/v1/expressions\\:parse", srv.parseExpression)
	app.Post("/v1/expressions\\:evaluate", srv.evaluateExpression)

	// Selectors API
	app.Post("/v1/selectors", srv.createSelector)
	app.Get("/v1/selectors", srv.listSelectors)
	app.Post("/v1/selectors\\:matchAll", srv.matchAll)
	app.Get("/v1/selectors/:selector", srv.getSelector)
	app.Patch("/v1/selectors/:selector", srv.updateSelector)
	app.Delete("/v1/selectors/:selector", srv.deleteSelector)
	app.Post("/v1/selectors/:selector\\:match", srv.matchSelector)

	if srv.points != nil {
		app.Get("/v1/metrics", srv.getMetrics)
	}

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing and for
// mounting the web UI).
func (s *Server) App() *fiber.App {
	return s.app
}

// --- Expression Handlers ---

type expressionRequest struct {
	Expression string   `json:"expression"`
	Tags       []string `json:"tags"`
}

func (s *Server) parseExpression(c *fiber.Ctx) error {
	var req expressionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}

	expr, err := s.parse(c.UserContext(), "adhoc", req.Expression)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"expression": req.Expression,
		"formatted":  expr.String(),
	})
}

func (s *Server) evaluateExpression(c *fiber.Ctx) error {
	var req expressionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}

	ctx := c.UserContext()
	expr, err := s.parse(ctx, "adhoc", req.Expression)
	if err != nil {
		return errorResponse(c, err)
	}

	result := s.evaluate(ctx, "adhoc", expr, tagexpr.NewTagSet(req.Tags...))
	return c.JSON(fiber.Map{
		"expression": req.Expression,
		"formatted":  expr.String(),
		"tags":       tagsOrEmpty(req.Tags),
		"result":     result,
	})
}

// --- Selector Handlers ---

type createSelectorRequest struct {
	Expression  string `json:"expression"`
	Description string `json:"description"`
}

type updateSelectorRequest struct {
	Expression  *string `json:"expression"`
	Description *string `json:"description"`
}

type matchRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) createSelector(c *fiber.Ctx) error {
	selectorID := c.Query("selectorId")
	if selectorID == "" {
		return badRequest(c, "selectorId query parameter is required")
	}

	var req createSelectorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}

	// Validate by parsing so rejected expressions are logged and counted.
	if _, err := s.parse(c.UserContext(), "selector:"+selectorID, req.Expression); err != nil {
		return errorResponse(c, err)
	}

	sel, err := s.store.Create(selectorID, req.Expression, req.Description)
	if err != nil {
		return errorResponse(c, err)
	}
	s.logger.Info("selector created",
		slog.String("selector", sel.Name),
		slog.String("expression", sel.Expression),
		slog.String("revision_id", sel.RevisionID))
	return c.Status(fiber.StatusOK).JSON(selectorToJSON(sel))
}

func (s *Server) getSelector(c *fiber.Ctx) error {
	sel, err := s.store.Get(c.Params("selector"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(selectorToJSON(sel))
}

func (s *Server) listSelectors(c *fiber.Ctx) error {
	selectors, err := s.store.List()
	if err != nil {
		return errorResponse(c, err)
	}

	items := make([]fiber.Map, len(selectors))
	for i, sel := range selectors {
		items[i] = selectorToJSON(sel)
	}
	return c.JSON(fiber.Map{
		"selectors": items,
	})
}

func (s *Server) updateSelector(c *fiber.Ctx) error {
	name := c.Params("selector")

	var req updateSelectorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}

	if req.Expression != nil {
		if _, err := s.parse(c.UserContext(), "selector:"+name, *req.Expression); err != nil {
			return errorResponse(c, err)
		}
	}

	sel, err := s.store.Update(name, store.Patch{Source: req.Expression, Description: req.Description})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(selectorToJSON(sel))
}

func (s *Server) deleteSelector(c *fiber.Ctx) error {
	name := c.Params("selector")
	if err := s.store.Delete(name); err != nil {
		return errorResponse(c, err)
	}
	s.logger.Info("selector deleted", slog.String("selector", name))
	return c.JSON(fiber.Map{
		"name": name,
		"done": true,
	})
}

func (s *Server) matchSelector(c *fiber.Ctx) error {
	var req matchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}

	sel, err := s.store.Get(c.Params("selector"))
	if err != nil {
		return errorResponse(c, err)
	}

	result := s.evaluate(c.UserContext(), sel.Name, sel.Expr(), tagexpr.NewTagSet(req.Tags...))
	return c.JSON(fiber.Map{
		"selector":   sel.Name,
		"expression": sel.Expression,
		"tags":       tagsOrEmpty(req.Tags),
		"result":     result,
	})
}

func (s *Server) matchAll(c *fiber.Ctx) error {
	var req matchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}

	selectors, err := s.store.List()
	if err != nil {
		return errorResponse(c, err)
	}

	ctx := c.UserContext()
	tags := tagexpr.NewTagSet(req.Tags...)
	matched := []string{}
	for _, sel := range selectors {
		if s.evaluate(ctx, sel.Name, sel.Expr(), tags) {
			matched = append(matched, sel.Name)
		}
	}
	return c.JSON(fiber.Map{
		"tags":      tagsOrEmpty(req.Tags),
		"selectors": matched,
	})
}

func (s *Server) getMetrics(c *fiber.Ctx) error {
	points, err := s.points.Snapshot(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	if points == nil {
		points = []observability.Point{}
	}
	return c.JSON(fiber.Map{
		"metrics": points,
	})
}

// --- Helpers ---

// parse parses expression, recording the outcome. source names where the
// expression came from in logs.
func (s *Server) parse(ctx context.Context, source, expression string) (tagexpr.Expr, error) {
	_, span := s.tracer.Start(ctx, "parse", expression)
	expr, err := tagexpr.Parse(expression)
	s.tracer.End(span, err)

	if err != nil {
		s.metrics.RecordParse(ctx, false, observability.ErrorKind(err))
		observability.LogParseError(s.logger, source, expression, err)
		return nil, err
	}
	s.metrics.RecordParse(ctx, true, "")
	return expr, nil
}

func (s *Server) evaluate(ctx context.Context, source string, expr tagexpr.Expr, tags tagexpr.TagSet) bool {
	result := tagexpr.EvaluateSet(expr, tags)
	s.metrics.RecordEvaluation(ctx, source, result)
	return result
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    fiber.StatusBadRequest,
			"message": message,
			"status":  "INVALID_ARGUMENT",
		},
	})
}

// errorResponse maps parse and store errors onto the error envelope.
func errorResponse(c *fiber.Ctx, err error) error {
	var serr *tagexpr.SyntaxError
	if errors.As(err, &serr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fiber.Map{
				"code":     fiber.StatusBadRequest,
				"message":  serr.Error(),
				"status":   "INVALID_ARGUMENT",
				"kind":     serr.Kind.String(),
				"position": serr.Pos,
			},
		})
	}

	code, status := fiber.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, store.ErrNotFound):
		code, status = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, store.ErrAlreadyExists):
		code, status = fiber.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, store.ErrInvalidName):
		code, status = fiber.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, store.ErrClosed):
		code, status = fiber.StatusServiceUnavailable, "UNAVAILABLE"
	}
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": err.Error(),
			"status":  status,
		},
	})
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func selectorToJSON(sel *store.Selector) fiber.Map {
	return fiber.Map{
		"name":        sel.Name,
		"expression":  sel.Expression,
		"source":      sel.Source,
		"description": sel.Description,
		"revisionId":  sel.RevisionID,
		"createTime":  sel.CreateTime.Format(time.RFC3339),
		"updateTime":  sel.UpdateTime.Format(time.RFC3339),
	}
}
