package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeURL(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips utm params and fragment",
			input:    "https://example.com/news?utm_source=x&id=42&utm_campaign=y#section",
			expected: "https://example.com/news?id=42",
		},
		{
			name:     "preserves order of remaining params",
			input:    "https://example.com/a?z=1&utm_medium=m&a=2&b=3",
			expected: "https://example.com/a?z=1&a=2&b=3",
		},
		{
			name:     "no query untouched",
			input:    "https://example.com/plain",
			expected: "https://example.com/plain",
		},
		{
			name:     "all params tracking",
			input:    "https://example.com/x?utm_source=a&utm_term=b",
			expected: "https://example.com/x",
		},
		{
			name:     "non-utm params with utm-like values kept",
			input:    "https://example.com/x?ref=utm_source",
			expected: "https://example.com/x?ref=utm_source",
		},
		{
			name:     "malformed url returned unchanged",
			input:    "http://[::1]:namedport",
			expected: "http://[::1]:namedport",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CanonicalizeURL(tc.input))
		})
	}
}

func TestCanonicalizeURLIdempotent(t *testing.T) {
	input := "https://example.com/news?utm_source=x&id=42#frag"
	once := CanonicalizeURL(input)
	assert.Equal(t, once, CanonicalizeURL(once))
}

func TestCleanText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips tags",
			input:    "<p>Apple <b>beats</b> estimates</p>",
			expected: "Apple beats estimates",
		},
		{
			name:     "unescapes entities",
			input:    "Q1 earnings &amp; guidance",
			expected: "Q1 earnings & guidance",
		},
		{
			name:     "collapses whitespace",
			input:    "  Apple\n\tbeats   estimates  ",
			expected: "Apple beats estimates",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "tags only",
			input:    "<div><span></span></div>",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CleanText(tc.input))
		})
	}
}

func TestGenerateHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := GenerateHash("Apple beats estimates", "https://example.com/news/1")
		b := GenerateHash("Apple beats estimates", "https://example.com/news/1")
		assert.NotEmpty(t, a)
		assert.Equal(t, a, b)
		assert.Len(t, a, 40)
	})

	t.Run("same title and host share hash across paths", func(t *testing.T) {
		a := GenerateHash("Apple beats estimates", "https://example.com/news/1")
		b := GenerateHash("Apple beats estimates", "https://example.com/other/2")
		assert.Equal(t, a, b)
	})

	t.Run("host is case insensitive", func(t *testing.T) {
		a := GenerateHash("Apple beats estimates", "https://Example.COM/news/1")
		b := GenerateHash("Apple beats estimates", "https://example.com/news/1")
		assert.Equal(t, a, b)
	})

	t.Run("different host differs", func(t *testing.T) {
		a := GenerateHash("Apple beats estimates", "https://example.com/1")
		b := GenerateHash("Apple beats estimates", "https://other.com/1")
		assert.NotEqual(t, a, b)
	})

	t.Run("title is cleaned before hashing", func(t *testing.T) {
		a := GenerateHash("<b>Apple</b>  beats estimates", "https://example.com/1")
		b := GenerateHash("Apple beats estimates", "https://example.com/1")
		assert.Equal(t, a, b)
	})

	t.Run("empty inputs yield empty hash", func(t *testing.T) {
		assert.Empty(t, GenerateHash("", "https://example.com/1"))
		assert.Empty(t, GenerateHash("Apple beats estimates", ""))
	})
}
