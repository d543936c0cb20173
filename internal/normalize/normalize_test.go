package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCaseAndWhitespace(t *testing.T) {
	a := Normalize("Implement the login endpoint using the existing auth module exactly as described in the spec.", 192)
	b := Normalize("  Implement  the Login Endpoint using the existing auth module exactly as described in the spec.\n", 192)
	assert.Equal(t, a, b)
}

func TestNormalizeStripsDecoration(t *testing.T) {
	got := Normalize("**Implement** the `login` endpoint", 192)
	assert.Equal(t, "implement the login endpoint", got)
}

func TestNormalizeIdempotent(t *testing.T) {
	s := "  **Weird**   Input\twith\ntabs and *emphasis*  "
	once := Normalize(s, 192)
	twice := Normalize(once, 192)
	assert.Equal(t, once, twice)
}

func TestNormalizeTruncationBoundary(t *testing.T) {
	exact := strings.Repeat("a", 192)
	over := exact + "b"

	assert.Equal(t, exact, Normalize(exact, 192))
	assert.Equal(t, exact, Normalize(over, 192))
}

func TestNormalizeDefaultLength(t *testing.T) {
	s := strings.Repeat("x", 300)
	got := Normalize(s, 0)
	assert.Len(t, got, DefaultPrefixLength)
}

func TestNormalizeRightTrimsAfterTruncation(t *testing.T) {
	s := strings.Repeat("a", 190) + "  trailing"
	got := Normalize(s, 192)
	assert.False(t, strings.HasSuffix(got, " "))
}
