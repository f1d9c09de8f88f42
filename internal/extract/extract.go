// Package extract pulls plain text out of uploaded files so their content
// can flow through note synthesis like any typed note.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// maxFileBytes caps uploads; anything larger is rejected before parsing.
const maxFileBytes = 20 << 20

var ErrUnsupportedType = fmt.Errorf("unsupported file type")

// Text extracts readable text from the named file's content. The filename
// extension selects the parser: .pdf, .html/.htm, and anything text-like
// (.txt, .md, no extension) are supported.
func Text(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filename, err)
	}
	if len(data) > maxFileBytes {
		return "", fmt.Errorf("%s exceeds the %d MB upload limit", filename, maxFileBytes>>20)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return fromPDF(data)
	case ".html", ".htm":
		return fromHTML(data)
	case ".txt", ".md", ".text", "":
		return normalize(string(data)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}
}

func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single bad page should not sink the document.
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	out := normalize(b.String())
	if out == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return out, nil
}

// fromHTML walks the parse tree collecting text nodes, skipping script and
// style subtrees.
func fromHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "p", "br", "div", "li", "h1", "h2", "h3", "h4", "tr":
				b.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return normalize(b.String()), nil
}

// normalize collapses runs of blank lines and trims edge whitespace.
func normalize(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
