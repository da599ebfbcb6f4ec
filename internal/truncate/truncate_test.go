package truncate

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linesOf(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line " + strconv.Itoa(i)
	}
	return strings.Join(lines, "\n")
}

func TestLinesUnderLimit(t *testing.T) {
	text := linesOf(10)
	res := Lines(text, 500, 200, 200)
	assert.False(t, res.Truncated)
	assert.Equal(t, text, res.Text)
}

func TestLinesOverLimit(t *testing.T) {
	text := linesOf(1000)
	res := Lines(text, 500, 10, 10)
	require.True(t, res.Truncated)
	assert.True(t, strings.HasPrefix(res.Text, "line 0\n"))
	assert.True(t, strings.HasSuffix(res.Text, "line 999"))
	assert.Contains(t, res.Text, Marker)
	assert.Contains(t, res.Text, "980 lines omitted")
}

func TestLinesHeadTailExceedsTotal(t *testing.T) {
	text := linesOf(5)
	res := Lines(text, 2, 10, 10)
	assert.False(t, res.Truncated)
	assert.Equal(t, text, res.Text)
}

func TestCharsOverLimit(t *testing.T) {
	text := strings.Repeat("a", 100) + strings.Repeat("b", 100)
	res := Chars(text, 50, 10, 10)
	require.True(t, res.Truncated)
	assert.True(t, strings.HasPrefix(res.Text, "aaaaaaaaaa"))
	assert.True(t, strings.HasSuffix(res.Text, "bbbbbbbbbb"))
	assert.Contains(t, res.Text, Marker)
}

func TestCharsUnderLimit(t *testing.T) {
	res := Chars("short", 50, 10, 10)
	assert.False(t, res.Truncated)
	assert.Equal(t, "short", res.Text)
}
