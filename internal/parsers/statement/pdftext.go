package statement

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ExtractText pulls the text content out of a PDF document, one output line
// per text-positioning group. Statement layouts vary wildly; this recovers
// the common row-per-line case and leaves exotic layouts to the line scanner
// to reject.
func ExtractText(raw []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(raw), conf)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return "", fmt.Errorf("invalid PDF: %w", err)
	}

	var b strings.Builder
	for page := 1; page <= ctx.PageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			return "", fmt.Errorf("failed to extract content of page %d: %w", page, err)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read content of page %d: %w", page, err)
		}
		b.WriteString(decodeContentText(content))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// decodeContentText walks a page content stream and collects the arguments
// of the text-showing operators (Tj, TJ, ', "), flushing a line whenever a
// text-positioning operator moves the cursor.
func decodeContentText(content []byte) string {
	var (
		out  strings.Builder
		line strings.Builder
	)
	flush := func() {
		if line.Len() > 0 {
			out.WriteString(strings.TrimSpace(line.String()))
			out.WriteString("\n")
			line.Reset()
		}
	}

	i := 0
	for i < len(content) {
		switch content[i] {
		case '(':
			text, next := readLiteralString(content, i)
			line.WriteString(text)
			i = next
		case 'T':
			if i+1 < len(content) {
				switch content[i+1] {
				case 'd', 'D', '*':
					flush()
					i += 2
					continue
				}
			}
			i++
		case '\'', '"':
			flush()
			i++
		case 'E':
			if bytes.HasPrefix(content[i:], []byte("ET")) {
				flush()
				i += 2
				continue
			}
			i++
		default:
			i++
		}
	}
	flush()
	return out.String()
}

// readLiteralString consumes a PDF literal string starting at the opening
// parenthesis, resolving escapes and balanced nesting, and returns the
// decoded text plus the index just past the closing parenthesis.
func readLiteralString(content []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				switch content[i+1] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case '(', ')', '\\':
					b.WriteByte(content[i+1])
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}
