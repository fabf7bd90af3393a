package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"docrag/internal/helper"
	"docrag/internal/models"
)

var mimetypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".md":   "text/markdown",
	".txt":  "text/plain",
}

// Parse turns one file into a structured element tree. The chunker
// depends only on element kind, text, heading level and origin, never
// on the format-specific readers used here.
func Parse(filePath string) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	mimetype, ok := mimetypes[ext]
	if !ok {
		return nil, fmt.Errorf("parse: unsupported file format: %s", ext)
	}

	var (
		elements []models.Element
		err      error
	)
	switch ext {
	case ".pdf":
		elements, err = parsePDF(filePath)
	case ".docx":
		elements, err = parseDOCX(filePath)
	case ".pptx":
		elements, err = parsePPTX(filePath)
	case ".xlsx":
		elements, err = parseXLSX(filePath)
	case ".ods":
		elements, err = parseODS(filePath)
	case ".md":
		elements, err = parseMarkdownFile(filePath)
	case ".txt":
		elements, err = parseText(filePath)
	}
	if err != nil {
		return nil, err
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &models.Document{
		ID: id,
		Origin: models.Origin{
			Filename: filepath.Base(filePath),
			Mimetype: mimetype,
		},
		Elements: elements,
	}, nil
}

func parsePDF(filePath string) ([]models.Element, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var elements []models.Element
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		for _, para := range splitParagraphs(pageText) {
			elements = append(elements, models.Element{
				Kind: models.ElementParagraph,
				Text: para,
				Page: i,
			})
		}
	}
	return elements, nil
}

func parseDOCX(filePath string) ([]models.Element, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc := r.Editable()
	var elements []models.Element
	for _, p := range strings.Split(doc.GetContent(), "\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		elements = append(elements, models.Element{
			Kind: models.ElementParagraph,
			Text: p,
		})
	}
	return elements, nil
}

func parsePPTX(filePath string) ([]models.Element, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var elements []models.Element
	slideNum := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		slideNum++
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := strings.TrimSpace(extractTextFromXML(string(data)))
		if slideText == "" {
			continue
		}
		elements = append(elements, models.Element{
			Kind: models.ElementParagraph,
			Text: slideText,
			Page: slideNum,
		})
	}
	return elements, nil
}

func parseXLSX(filePath string) ([]models.Element, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var elements []models.Element
	for sheetNum, sheet := range f.Sheets {
		var rows []string
		for _, row := range sheet.Rows {
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, strings.Join(cells, "\t"))
		}
		elements = appendSheet(elements, sheet.Name, rows, sheetNum+1)
	}
	return elements, nil
}

func parseODS(filePath string) ([]models.Element, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var elements []models.Element
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}
		elements = appendSheet(elements, sheetName, lines, sheetNum+1)
	}
	return elements, nil
}

// appendSheet emits a sheet as one heading plus one atomic table
// element; spreadsheets are never split mid-table.
func appendSheet(elements []models.Element, name string, rows []string, page int) []models.Element {
	body := strings.TrimSpace(strings.Join(rows, "\n"))
	if body == "" {
		return elements
	}
	return append(elements,
		models.Element{Kind: models.ElementHeading, Text: "Sheet: " + name, Level: 1, Page: page},
		models.Element{Kind: models.ElementTable, Text: body, Page: page},
	)
}

func parseText(filePath string) ([]models.Element, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var elements []models.Element
	for _, para := range splitParagraphs(string(data)) {
		elements = append(elements, models.Element{
			Kind: models.ElementParagraph,
			Text: para,
		})
	}
	return elements, nil
}

// splitParagraphs breaks plain text on blank lines.
func splitParagraphs(text string) []string {
	var paras []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paras = append(paras, block)
		}
	}
	return paras
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
