package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xeptore/sermondl/sermonaudio/extract"
)

func TestIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected []string
	}{
		{
			name:     "structured string and numeric ids",
			body:     `{"results":[{"sermonID":"111"},{"sermonID":222},{"title":"no id"},{"sermonID":"111"}]}`,
			expected: []string{"111", "222"},
		},
		{
			name:     "structured ignores links elsewhere in the body",
			body:     `{"results":[{"sermonID":"5","url":"/sermons/99"}]}`,
			expected: []string{"5"},
		},
		{
			name:     "json without results falls back to text",
			body:     `{"items":[{"sermonID": "77"}], "next":"/sermons/78"}`,
			expected: []string{"78", "77"},
		},
		{
			name:     "html links",
			body:     `<a href="/sermons/10">a</a><a href="/sermons/20">b</a><a href="/sermons/10">c</a>`,
			expected: []string{"10", "20"},
		},
		{
			name:     "feed",
			body:     `<rss><item><link>https://www.sermonaudio.com/sermons/31</link></item><item><guid>https://www.sermonaudio.com/sermons/32</guid></item></rss>`,
			expected: []string{"31", "32"},
		},
		{
			name:     "empty results array falls back to text",
			body:     `{"results":[]}`,
			expected: []string{},
		},
		{
			name:     "nothing",
			body:     `<html></html>`,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, extract.IDs([]byte(tt.body)))
		})
	}
}

func TestIDsExtractionEquivalence(t *testing.T) {
	t.Parallel()

	structured := `{"results":[{"sermonID":"3"},{"sermonID":"1"},{"sermonID":"2"}]}`
	textual := `<a href="/sermons/3"></a><a href="/sermons/1"></a><a href="/sermons/2"></a>`

	assert.Equal(t, extract.IDs([]byte(structured)), extract.IDs([]byte(textual)))
}
