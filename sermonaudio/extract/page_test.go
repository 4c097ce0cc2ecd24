package extract_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/sermondl/sermonaudio/extract"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()

	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	return d
}

func TestTitleChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "primary heading wins",
			html:     `<title>Doc | SermonAudio</title><meta property="og:title" content="OG"><h1 class="title"> The   Primary </h1>`,
			expected: "The Primary",
		},
		{
			name:     "og title",
			html:     `<title>Doc | SermonAudio</title><meta property="og:title" content="From OG"><h1>Heading</h1>`,
			expected: "From OG",
		},
		{
			name:     "document title with suffix stripped",
			html:     `<title>Sola Fide | SermonAudio.com</title><h1>Heading</h1>`,
			expected: "Sola Fide",
		},
		{
			name:     "first heading",
			html:     `<h1>Only Heading</h1>`,
			expected: "Only Heading",
		},
		{
			name:     "title-like class",
			html:     `<div class="PageTitle-main">Classy</div>`,
			expected: "Classy",
		},
		{
			name:     "default",
			html:     `<p>nothing here</p>`,
			expected: "Untitled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, extract.Title(doc(t, tt.html)))
		})
	}
}

func TestSeries(t *testing.T) {
	t.Parallel()

	s := extract.Series(doc(t, `<a href="/broadcasters/x">B</a><a href="/series/150726"> Romans   Study </a><a href="/series/2">Other</a>`))
	require.NotNil(t, s)
	assert.Equal(t, "Romans Study", *s)

	assert.Nil(t, extract.Series(doc(t, `<a href="/series/abc">Not numeric</a>`)))
	assert.Nil(t, extract.Series(doc(t, `<a href="/series/1">  </a>`)))
}

func TestOwnerName(t *testing.T) {
	t.Parallel()

	name, ok := extract.First(doc(t, `<h1>#Grace Heritage</h1>`), extract.OwnerNameStrategies)
	require.True(t, ok)
	assert.Equal(t, "Grace Heritage", name)

	name, ok = extract.First(doc(t, `<title>Sermons | Grace Heritage Baptist Church | SermonAudio</title>`), extract.OwnerNameStrategies)
	require.True(t, ok)
	assert.Equal(t, "Grace Heritage Baptist Church", name)

	name, ok = extract.First(doc(t, `<title>Apologetics Individual Files | SermonAudio</title>`), extract.OwnerNameStrategies)
	require.True(t, ok)
	assert.Equal(t, "Apologetics Individual Files", name)

	_, ok = extract.First(doc(t, `<p></p>`), extract.OwnerNameStrategies)
	assert.False(t, ok)
}
