package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateExpanderKeepsOriginalFirst(t *testing.T) {
	e := NewTemplateExpander()

	variants, err := e.Expand(context.Background(), "vector databases")
	require.NoError(t, err)
	require.Len(t, variants, 3)
	assert.Equal(t, "vector databases", variants[0])
	assert.Equal(t, "what is vector databases", variants[1])
	assert.Equal(t, "how does vector databases work", variants[2])
}

func TestTemplateExpanderMaxVariants(t *testing.T) {
	e := NewTemplateExpander(WithMaxVariants(2))

	variants, err := e.Expand(context.Background(), "caching")
	require.NoError(t, err)
	assert.Len(t, variants, 2)
}

func TestTemplateExpanderEmptyQuery(t *testing.T) {
	e := NewTemplateExpander()

	variants, err := e.Expand(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, variants)
}

func TestTemplateExpanderCustomTemplates(t *testing.T) {
	e := NewTemplateExpander(WithTemplates([]string{"%s explained"}), WithMaxVariants(5))

	variants, err := e.Expand(context.Background(), "RRF")
	require.NoError(t, err)
	assert.Equal(t, []string{"RRF", "RRF explained"}, variants)
}
