package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/models"
)

func kinds(elements []models.Element) []models.ElementKind {
	out := make([]models.ElementKind, len(elements))
	for i, el := range elements {
		out[i] = el.Kind
	}
	return out
}

func TestParseMarkdownHeadingsAndParagraphs(t *testing.T) {
	source := []byte(`# Title

Intro paragraph.

## Section

Body text here.
`)
	elements, err := ParseMarkdown(source)
	require.NoError(t, err)
	require.Len(t, elements, 4)

	assert.Equal(t, models.ElementHeading, elements[0].Kind)
	assert.Equal(t, "Title", elements[0].Text)
	assert.Equal(t, 1, elements[0].Level)

	assert.Equal(t, models.ElementParagraph, elements[1].Kind)
	assert.Equal(t, "Intro paragraph.", elements[1].Text)

	assert.Equal(t, models.ElementHeading, elements[2].Kind)
	assert.Equal(t, "Section", elements[2].Text)
	assert.Equal(t, 2, elements[2].Level)

	assert.Equal(t, models.ElementParagraph, elements[3].Kind)
	assert.Equal(t, "Body text here.", elements[3].Text)
}

func TestParseMarkdownTableIsAtomic(t *testing.T) {
	source := []byte(`Before.

| Name | Qty |
| ---- | --- |
| Bolt | 40  |
| Nut  | 12  |

After.
`)
	elements, err := ParseMarkdown(source)
	require.NoError(t, err)
	require.Equal(t, []models.ElementKind{
		models.ElementParagraph,
		models.ElementTable,
		models.ElementParagraph,
	}, kinds(elements))

	table := elements[1]
	assert.True(t, table.Kind.Atomic())
	assert.Contains(t, table.Text, "Name\tQty")
	assert.Contains(t, table.Text, "Bolt\t40")
	assert.Contains(t, table.Text, "Nut\t12")
}

func TestParseMarkdownPictureAltText(t *testing.T) {
	source := []byte(`See the figure.

![system diagram](images/arch.png)

![](images/bare.png)
`)
	elements, err := ParseMarkdown(source)
	require.NoError(t, err)
	require.Equal(t, []models.ElementKind{
		models.ElementParagraph,
		models.ElementPicture,
		models.ElementPicture,
	}, kinds(elements))

	assert.Equal(t, "system diagram", elements[1].Text)
	// no alt text falls back to the destination
	assert.Equal(t, "images/bare.png", elements[2].Text)
}

func TestParseMarkdownInlineImageSplitsOut(t *testing.T) {
	source := []byte("The chart ![sales chart](q3.png) shows growth.\n")
	elements, err := ParseMarkdown(source)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, models.ElementParagraph, elements[0].Kind)
	assert.NotContains(t, elements[0].Text, "sales chart")
	assert.Equal(t, models.ElementPicture, elements[1].Kind)
	assert.Equal(t, "sales chart", elements[1].Text)
}

func TestParseMarkdownCodeAndLists(t *testing.T) {
	source := []byte("```\nfmt.Println(\"hi\")\n```\n\n- one\n- two\n")
	elements, err := ParseMarkdown(source)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, models.ElementParagraph, elements[0].Kind)
	assert.Contains(t, elements[0].Text, `fmt.Println("hi")`)
	assert.Equal(t, models.ElementParagraph, elements[1].Kind)
	assert.Contains(t, elements[1].Text, "one")
	assert.Contains(t, elements[1].Text, "two")
}
