package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPlainName(t *testing.T) {
	assert.True(t, Match("foo", "foo-1.0_1"))
	assert.False(t, Match("foo", "bar-1.0_1"))
}

func TestMatchDeweyRange(t *testing.T) {
	assert.True(t, Match("foo>=1.0", "foo-1.2_1"))
	assert.False(t, Match("foo>=2.0", "foo-1.2_1"))
	assert.True(t, Match("foo>=1,<2", "foo-1.9_3"))
	assert.False(t, Match("foo>=1,<2", "foo-2.0_1"))
	assert.True(t, Match("foo==1.2_3", "foo-1.2_3"))
}

func TestMatchGlob(t *testing.T) {
	assert.True(t, Match("foo-*", "foo-1.2_1"))
	assert.False(t, Match("bar-*", "foo-1.2_1"))
}

func TestMatchQuickReject(t *testing.T) {
	assert.False(t, Match("foo", "xyz-1.0_1"))
}

func TestMatchProvides(t *testing.T) {
	provides := []string{"libfoo-1.0_1", "libbar-2.0_1"}
	assert.True(t, MatchProvides("libfoo>=1.0", provides))
	assert.False(t, MatchProvides("libbaz", provides))
}

func TestPatternName(t *testing.T) {
	assert.Equal(t, "foo", PatternName("foo>=1.0"))
	assert.Equal(t, "foo", PatternName("foo-*"))
	assert.Equal(t, "foo", PatternName("foo"))
}
