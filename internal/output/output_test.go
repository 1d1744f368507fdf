package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessfAndWarningf(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf)

	w.Successf("ingested %d chunks", 3)
	w.Warningf("degraded sources: %s", "vector")

	assert.Contains(t, buf.String(), "✓ ingested 3 chunks\n")
	assert.Contains(t, buf.String(), "warning: degraded sources: vector\n")
}

func TestResultIndentsBody(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf)

	w.Result(2, "title (score 0.900)", "line one\nline two\n")

	assert.Equal(t, "2. title (score 0.900)\n   line one\n   line two\n", buf.String())
}

func TestResultWithoutBody(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf)

	w.Result(1, "only header", "")

	assert.Equal(t, "1. only header\n", buf.String())
}

func TestFieldAlignment(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf)

	w.Field("Documents", 4)

	assert.Equal(t, "Documents:       4\n", buf.String())
}
