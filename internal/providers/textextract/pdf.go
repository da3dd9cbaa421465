package textextract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yoockh/careerpath/internal/utils"
)

// Extractor turns an uploaded document into plain text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

var pdfMagic = []byte("%PDF-")

// PDF extracts page text in reading order as delivered by the page content
// streams. It is lossy: layout is reduced to lines.
type PDF struct{}

func NewPDF() *PDF { return &PDF{} }

func (PDF) Extract(data []byte) (text string, err error) {
	const op = "PDF.Extract"

	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return "", utils.K(utils.KindDocumentFormat, op, "document is not a pdf", nil)
	}

	// the parser panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = utils.K(utils.KindDocumentFormat, op, "document could not be parsed", fmt.Errorf("pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", utils.K(utils.KindDocumentFormat, op, "document could not be parsed", err)
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			return "", utils.K(utils.KindDocumentFormat, op, fmt.Sprintf("page %d could not be read", i), err)
		}
		b.WriteString(t)
		b.WriteString("\n")
	}

	text = normalizeWhitespace(b.String())
	if text == "" {
		return "", utils.K(utils.KindDocumentEmpty, op, "document contains no extractable text", nil)
	}
	return text, nil
}

// normalizeWhitespace collapses runs of blanks inside a line, trims every
// line and drops empty lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.Join(strings.Fields(ln), " ")
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
