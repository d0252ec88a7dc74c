package chunking

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// element is a parsed portion of a document together with metadata the
// parser learned about it, such as a PDF page number.
type element struct {
	Text     string
	Metadata map[string]interface{}
}

// parseFile dispatches on the file extension and returns the document's
// text elements. Elements with no text content are dropped.
func parseFile(path string) ([]element, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return parseText(path)
	case ".html", ".htm":
		return parseHTML(path)
	case ".pdf":
		return parsePDF(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, filepath.Ext(path))
	}
}

func parseText(path string) ([]element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []element{{
		Text:     text,
		Metadata: map[string]interface{}{"category": "Text"},
	}}, nil
}

// blockTags are HTML elements that end a run of inline text.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "br": true, "blockquote": true, "pre": true,
}

func parseHTML(path string) ([]element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var buf bytes.Buffer
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if buf.Len() > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			buf.WriteString("\n\n")
		}
	}
	walk(doc)

	text := normalizeBlankLines(buf.String())
	if text == "" {
		return nil, nil
	}

	meta := map[string]interface{}{"category": "HTML"}
	if title != "" {
		meta["title"] = title
	}
	return []element{{Text: text, Metadata: meta}}, nil
}

func parsePDF(path string) ([]element, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer f.Close()

	var elements []element
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrParseFailed, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		elements = append(elements, element{
			Text: text,
			Metadata: map[string]interface{}{
				"category":    "PDFPage",
				"page_number": i,
			},
		})
	}
	return elements, nil
}

// normalizeBlankLines trims the text and collapses runs of blank lines
// into a single paragraph break.
func normalizeBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
