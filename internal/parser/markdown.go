package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"docrag/internal/models"
)

// Markdown is the structural reference format: the goldmark AST gives
// real heading levels, GFM tables and pictures, so markdown documents
// exercise the full element tree.

func parseMarkdownFile(filePath string) ([]models.Element, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseMarkdown(source)
}

// ParseMarkdown converts markdown source into an ordered element
// sequence by walking the top level of the goldmark AST.
func ParseMarkdown(source []byte) ([]models.Element, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(source))

	var elements []models.Element
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			elements = append(elements, models.Element{
				Kind:  models.ElementHeading,
				Text:  nodeText(node, source),
				Level: node.Level,
			})
		case *ast.Paragraph:
			elements = appendParagraph(elements, node, source)
		case *ast.FencedCodeBlock:
			elements = appendParagraphText(elements, blockLines(node, source))
		case *ast.CodeBlock:
			elements = appendParagraphText(elements, blockLines(node, source))
		case *ast.List, *ast.Blockquote:
			elements = appendParagraphText(elements, nodeText(node, source))
		case *east.Table:
			if body := tableText(node, source); body != "" {
				elements = append(elements, models.Element{
					Kind: models.ElementTable,
					Text: body,
				})
			}
		}
	}
	return elements, nil
}

// appendParagraph splits a paragraph into its text and any embedded
// pictures; picture alt text is kept on the picture element only.
func appendParagraph(elements []models.Element, node *ast.Paragraph, source []byte) []models.Element {
	elements = appendParagraphText(elements, nodeText(node, source))
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			elements = append(elements, models.Element{
				Kind: models.ElementPicture,
				Text: imageText(img, source),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return elements
}

func appendParagraphText(elements []models.Element, text string) []models.Element {
	text = strings.TrimSpace(text)
	if text == "" {
		return elements
	}
	return append(elements, models.Element{Kind: models.ElementParagraph, Text: text})
}

// nodeText flattens the inline text of a node, skipping image
// subtrees so alt text is not duplicated into paragraphs.
func nodeText(node ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// imageText is the alt text plus the destination as a fallback, so a
// picture element is never silently empty when a description exists.
func imageText(img *ast.Image, source []byte) string {
	var b strings.Builder
	for c := img.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	alt := strings.TrimSpace(b.String())
	if alt != "" {
		return alt
	}
	return strings.TrimSpace(string(img.Destination))
}

// blockLines reassembles the raw lines of a code block.
func blockLines(node ast.Node, source []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

// tableText serializes a GFM table row by row, cells tab-separated.
func tableText(table *east.Table, source []byte) string {
	var rows []string
	for r := table.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, nodeText(c, source))
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, "\t"))
		}
	}
	return strings.TrimSpace(strings.Join(rows, "\n"))
}
