package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/memory"
)

func TestCount(t *testing.T) {
	c, err := NewCounter()
	require.NoError(t, err)
	assert.Positive(t, c.Count("hello world"))
	assert.Equal(t, 0, c.Count(""))
	assert.Greater(t, c.Count(strings.Repeat("word ", 100)), c.Count("word"))
}

func TestEstimateFallback(t *testing.T) {
	assert.Equal(t, 3, Estimate().Count("abcdefghij"))
	var nilCounter *Counter
	assert.Equal(t, 1, nilCounter.Count("abc"))
}

func turns(contents ...string) []memory.Turn {
	out := make([]memory.Turn, 0, len(contents))
	for _, c := range contents {
		out = append(out, memory.Turn{Speaker: "x", Content: c})
	}
	return out
}

func TestClipTurnsKeepsNewest(t *testing.T) {
	c := Estimate()
	all := turns("aaaa", "bbbb", "cccc")
	per := c.CountTurn(all[0])

	clipped := c.ClipTurns(all, 2*per)
	require.Len(t, clipped, 2)
	assert.Equal(t, "bbbb", clipped[0].Content)
	assert.Equal(t, "cccc", clipped[1].Content)

	assert.Empty(t, c.ClipTurns(all, per-1))
	assert.Len(t, c.ClipTurns(all, 0), 3)
}

func TestClipTurnsDoesNotAlias(t *testing.T) {
	c := Estimate()
	all := turns("a", "b")
	clipped := c.ClipTurns(all, 0)
	clipped[0].Content = "changed"
	assert.Equal(t, "a", all[0].Content)
}

func TestClipStrings(t *testing.T) {
	c := Estimate()
	items := []string{"12345678", "1234", "1234"}
	assert.Equal(t, []string{"1234", "1234"}, c.ClipStrings(items, 2))
	assert.Equal(t, items, c.ClipStrings(items, -1))
	assert.Empty(t, c.ClipStrings(nil, 10))
}
