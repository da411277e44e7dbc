package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Line is a label/value pair printed inside a section.
type Line struct {
	Label string
	Value string
}

// Section is a headed block of a document. Table is printed after the lines when present.
type Section struct {
	Heading string
	Lines   []Line
	Text    string
	Table   *Dataset
}

// Document is a formal record rendered to PDF.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
	Footer   []Line
}

// PDFExporter renders documents to A4 PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out the document. Text is translated to cp1252 so Spanish accents survive the core fonts.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr(section.Heading), "B", 1, "L", false, 0, "")
		pdf.Ln(1)
		pdf.SetFont("Arial", "", 10)
		for _, line := range section.Lines {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(70, 6, tr(line.Label), "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.MultiCell(0, 6, tr(line.Value), "", "L", false)
		}
		if section.Text != "" {
			pdf.MultiCell(0, 6, tr(section.Text), "", "L", false)
		}
		if section.Table != nil && len(section.Table.Headers) > 0 {
			renderTable(pdf, tr, *section.Table)
		}
		pdf.Ln(3)
	}

	if len(doc.Footer) > 0 {
		pdf.Ln(10)
		width := 180.0 / float64(len(doc.Footer))
		pdf.SetFont("Arial", "", 10)
		for _, sig := range doc.Footer {
			pdf.CellFormat(width, 6, tr(sig.Value), "B", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "I", 9)
		for _, sig := range doc.Footer {
			pdf.CellFormat(width, 6, tr(sig.Label), "", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func renderTable(pdf *gofpdf.Fpdf, tr func(string) string, data Dataset) {
	colWidth := 180.0 / float64(len(data.Headers))
	pdf.SetFont("Arial", "B", 9)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 7, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for i := range data.Headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			pdf.CellFormat(colWidth, 6, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}
