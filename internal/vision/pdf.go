package vision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFTextExtractor reads text-showing operators from every page's content
// stream using pdfcpu.
type PDFTextExtractor struct{}

func NewPDFTextExtractor() *PDFTextExtractor {
	return &PDFTextExtractor{}
}

// ExtractText returns the text of all pages, pages separated by newlines.
func (e *PDFTextExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", NewError(ErrorBadData, "pdfcpu", "empty pdf", nil)
	}
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), model.NewDefaultConfiguration())
	if err != nil {
		return "", NewError(ErrorBadData, "pdfcpu", "read pdf", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", NewError(ErrorTimeout, "pdfcpu", "extraction cancelled", err)
		}
		r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return "", NewError(ErrorBadData, "pdfcpu", fmt.Sprintf("read page %d", pageNr), err)
		}
		if text := textFromContentStream(data); text != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

// textFromContentStream interprets the text operators Tj, TJ, ' and " and
// turns positioning operators into separators. Everything else is skipped.
// String bytes are decoded as-is; font ToUnicode CMaps are not applied, so
// CID-keyed fonts come out as glyph codes.
func textFromContentStream(data []byte) string {
	var (
		out      strings.Builder
		operands []string
		inArray  bool
	)
	sep := func(c byte) {
		if out.Len() == 0 {
			return
		}
		last := out.String()[out.Len()-1]
		if last == '\n' || last == ' ' {
			return
		}
		out.WriteByte(c)
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteralString(data, i)
			operands = append(operands, s)
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			s, next := readHexString(data, i)
			operands = append(operands, s)
			i = next
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '/':
			i++
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			tok := string(data[start:i])
			if n, err := strconv.ParseFloat(tok, 64); err == nil {
				// large negative kerning inside TJ is a word gap
				if inArray && n <= -200 {
					operands = append(operands, " ")
				}
				continue
			}
			switch tok {
			case "Tj", "TJ":
				for _, s := range operands {
					out.WriteString(s)
				}
			case "'", "\"":
				sep('\n')
				for _, s := range operands {
					out.WriteString(s)
				}
			case "T*", "ET":
				sep('\n')
			case "Td", "TD", "Tm":
				sep(' ')
			}
			operands = operands[:0]
		}
	}
	return strings.TrimSpace(out.String())
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// readLiteralString decodes a balanced (...) string starting at data[start].
func readLiteralString(data []byte, start int) (string, int) {
	var raw []byte
	depth := 0
	i := start
	for ; i < len(data); i++ {
		c := data[i]
		if c == '\\' && i+1 < len(data) {
			i++
			switch e := data[i]; e {
			case 'n':
				raw = append(raw, '\n')
			case 'r':
				raw = append(raw, '\r')
			case 't':
				raw = append(raw, '\t')
			case 'b':
				raw = append(raw, '\b')
			case 'f':
				raw = append(raw, '\f')
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					raw = append(raw, byte(val))
				} else {
					raw = append(raw, e)
				}
			}
			continue
		}
		if c == '(' {
			depth++
			if depth == 1 {
				continue
			}
		}
		if c == ')' {
			depth--
			if depth == 0 {
				i++
				break
			}
		}
		raw = append(raw, c)
	}
	return decodeTextBytes(raw), i
}

// readHexString decodes a <...> string starting at data[start].
func readHexString(data []byte, start int) (string, int) {
	end := bytes.IndexByte(data[start:], '>')
	if end < 0 {
		return "", len(data)
	}
	var digits []byte
	for _, c := range data[start+1 : start+end] {
		if !isPDFSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, 0, len(digits)/2)
	for k := 0; k+1 < len(digits); k += 2 {
		v, err := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if err != nil {
			return "", start + end + 1
		}
		raw = append(raw, byte(v))
	}
	return decodeTextBytes(raw), start + end + 1
}

// decodeTextBytes handles UTF-16BE strings with a byte order mark, UTF-8, and
// falls back to Latin-1.
func decodeTextBytes(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		units := make([]uint16, 0, (len(raw)-2)/2)
		for k := 2; k+1 < len(raw); k += 2 {
			units = append(units, uint16(raw[k])<<8|uint16(raw[k+1]))
		}
		return string(utf16.Decode(units))
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for k, b := range raw {
		runes[k] = rune(b)
	}
	return string(runes)
}
