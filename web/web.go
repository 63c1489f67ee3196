// Package web provides the embedded web UI: a selector dashboard and an
// expression playground.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/tagexpr/pkg/store"
	"github.com/lemonberrylabs/tagexpr/pkg/tagexpr"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the web UI pages.
type Handler struct {
	store   store.Store
	funcMap template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Data      interface{}
}

// New creates a new web UI handler.
func New(s store.Store) *Handler {
	return &Handler{
		store: s,
		funcMap: template.FuncMap{
			"timeAgo":     timeAgo,
			"formatTime":  formatTime,
			"truncate":    truncate,
			"resultClass": resultClass,
			"resultIcon":  resultIcon,
			"joinTags":    joinTags,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Parse templates fresh each time so define blocks don't conflict across pages
	tmpl := template.Must(
		template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page),
	)

	pd := pageData{
		NavActive: navActive,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Get("/ui/selectors/:name", h.selectorDetail)
	app.Get("/ui/playground", h.playground)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type dashboardContent struct {
	Selectors []*store.Selector
}

type selectorDetailContent struct {
	Selector *store.Selector
	Check    *checkView
}

type playgroundContent struct {
	Expression string
	Check      *checkView
	Tokens     []tagexpr.Token
}

// checkView is the outcome of evaluating an expression against tags.
type checkView struct {
	Tags       []string
	Formatted  string
	Result     bool
	Error      string
	Diagnostic string
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	selectors, err := h.store.List()
	if err != nil {
		return c.Status(500).SendString(err.Error())
	}
	return h.render(c, "dashboard.html", "dashboard", dashboardContent{
		Selectors: selectors,
	})
}

func (h *Handler) selectorDetail(c *fiber.Ctx) error {
	name := c.Params("name")
	sel, err := h.store.Get(name)
	if err != nil {
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Selector '%s' not found", name),
		})
	}

	content := selectorDetailContent{Selector: sel}
	if c.Context().QueryArgs().Has("tags") {
		tags := splitTags(c.Query("tags"))
		content.Check = &checkView{
			Tags:      tags,
			Formatted: sel.Expression,
			Result:    sel.Matches(tagexpr.NewTagSet(tags...)),
		}
	}
	return h.render(c, "selector_detail.html", "dashboard", content)
}

func (h *Handler) playground(c *fiber.Ctx) error {
	expression := c.Query("expression")
	content := playgroundContent{Expression: expression}

	// An empty expression is valid, so presence decides whether to check.
	if c.Context().QueryArgs().Has("expression") {
		content.Check = check(expression, splitTags(c.Query("tags")))
		if tokens, err := tagexpr.NewLexer(expression).Tokenize(); err == nil {
			content.Tokens = tokens
		}
	}
	return h.render(c, "playground.html", "playground", content)
}

// check parses and evaluates expression, capturing a syntax error for display.
func check(expression string, tags []string) *checkView {
	cv := &checkView{Tags: tags}
	expr, err := tagexpr.Parse(expression)
	if err != nil {
		cv.Error = err.Error()
		var serr *tagexpr.SyntaxError
		if errors.As(err, &serr) {
			cv.Diagnostic = serr.Diagnostic()
		}
		return cv
	}
	cv.Formatted = expr.String()
	cv.Result = tagexpr.Evaluate(expr, tags)
	return cv
}

// splitTags splits a comma-separated tag list, dropping empty entries.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// --- Template Helpers ---

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func resultClass(result bool) string {
	if result {
		return "result-match"
	}
	return "result-nomatch"
}

func resultIcon(result bool) template.HTML {
	if result {
		return "&#10003;"
	}
	return "&#10007;"
}

func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
