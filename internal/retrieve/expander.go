package retrieve

import (
	"context"
	"fmt"
	"strings"
)

// Expander produces query variants for multi-query retrieval. The first
// variant is always the original query.
type Expander interface {
	Expand(ctx context.Context, query string) ([]string, error)
}

// defaultTemplates rephrase a query for lexically different matches.
var defaultTemplates = []string{
	"what is %s",
	"how does %s work",
}

// TemplateExpander generates variants by filling rephrasing templates.
// It needs no model call, which makes it the fallback when no LLM-backed
// expander is configured.
type TemplateExpander struct {
	templates   []string
	maxVariants int
}

// TemplateExpanderOption configures a TemplateExpander.
type TemplateExpanderOption func(*TemplateExpander)

// WithTemplates replaces the default rephrasing templates. Each template
// must contain a single %s placeholder.
func WithTemplates(templates []string) TemplateExpanderOption {
	return func(e *TemplateExpander) {
		e.templates = templates
	}
}

// WithMaxVariants caps the total number of variants, original included.
func WithMaxVariants(n int) TemplateExpanderOption {
	return func(e *TemplateExpander) {
		e.maxVariants = n
	}
}

// NewTemplateExpander creates an expander with the default templates.
func NewTemplateExpander(opts ...TemplateExpanderOption) *TemplateExpander {
	e := &TemplateExpander{
		templates:   defaultTemplates,
		maxVariants: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns the original query followed by template variants,
// deduplicated case insensitively.
func (e *TemplateExpander) Expand(_ context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	variants := []string{query}
	seen := map[string]bool{strings.ToLower(query): true}

	for _, tmpl := range e.templates {
		if len(variants) >= e.maxVariants {
			break
		}
		v := fmt.Sprintf(tmpl, query)
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, v)
	}
	return variants, nil
}

var _ Expander = (*TemplateExpander)(nil)
