// =============================================================================
// Invoice Audit - PDF Text Extraction
// =============================================================================
//
// Thin frontend over go-fitz: pulls the text layer out of each page of an
// invoice PDF and splits it into lines for the shipment parser. The parser
// itself only ever sees lines, so tests and alternate inputs can bypass the
// PDF step entirely.
//
// =============================================================================

package pdfparser

import (
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ExtractLines reads a PDF file and returns its text content as lines, in
// page order.
func ExtractLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("apertura PDF %s: %w", path, err)
	}
	lines, err := ExtractLinesFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

// ExtractLinesFromMemory extracts the lines from PDF bytes already in
// memory.
func ExtractLinesFromMemory(data []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("apertura PDF: %w", err)
	}
	defer doc.Close()

	var lines []string
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			return nil, fmt.Errorf("estrazione testo pagina %d: %w", page+1, err)
		}
		if text == "" {
			continue
		}
		lines = append(lines, strings.Split(text, "\n")...)
	}
	return lines, nil
}
