// Package source turns files, readers, web pages and GitHub issues into
// plain text documents ready for evaluation.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mchmarny/agape/pkg/net"
	"golang.org/x/net/html/charset"
)

// MaxTextBytes caps the text read from files and readers.
const MaxTextBytes int64 = 5 << 20

// ErrEmptyDocument is returned when a fetched page or issue has no text.
// Files and readers may be empty; they score as neutral.
var ErrEmptyDocument = errors.New("document has no text")

// Document is text with a description of where it came from.
type Document struct {
	Source string `json:"source" yaml:"source"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Text   string `json:"text" yaml:"text"`
}

// FromFile reads the whole file at path.
func FromFile(path string) (*Document, error) {
	if path == "" {
		return nil, errors.New("file path required")
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("error opening file %s: %w", path, err)
	}
	defer f.Close()

	doc, err := FromReader(f, "file:"+path)
	if err != nil {
		return nil, err
	}
	doc.Title = filepath.Base(path)
	return doc, nil
}

// FromReader reads r to the end. Empty input is a valid, empty document.
func FromReader(r io.Reader, source string) (*Document, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	b, err := io.ReadAll(io.LimitReader(r, MaxTextBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", source, err)
	}
	if int64(len(b)) > MaxTextBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", source, MaxTextBytes)
	}

	return &Document{Source: source, Text: strings.TrimSpace(string(b))}, nil
}

// FromURL fetches rawURL. HTML pages are reduced to their visible text.
func FromURL(ctx context.Context, client *http.Client, rawURL string) (*Document, error) {
	c, err := net.GetContent(ctx, client, rawURL)
	if err != nil {
		return nil, err
	}

	doc := &Document{Source: "url:" + rawURL}

	if !c.IsHTML() {
		doc.Text = strings.TrimSpace(string(c.Body))
	} else if doc.Title, doc.Text, err = htmlText(c.Body, c.ContentType); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", rawURL, err)
	}

	if doc.Text == "" {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrEmptyDocument)
	}
	return doc, nil
}

// htmlText decodes body to UTF-8 and returns the page title and the text of
// everything but scripts, styles and embedded frames.
func htmlText(body []byte, contentType string) (title, text string, err error) {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	utf8Body, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", "", fmt.Errorf("error decoding body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return "", "", fmt.Errorf("error parsing html: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, iframe, noscript, head").Remove()

	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}

	var parts []string
	collectText(sel, &parts)
	return title, strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}

// collectText appends every text node under s so adjacent elements stay
// separated by whitespace.
func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				*parts = append(*parts, t)
			}
			return
		}
		collectText(c, parts)
	})
}
