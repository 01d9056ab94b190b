// Package render turns a tool document's help section into HTML or plain
// text for preview endpoints.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// HelpText returns the markdown source of the document's first <help>
// element, trimmed, or "" if the document has none.
func HelpText(root *etree.Element) string {
	if help := findHelp(root); help != nil {
		return strings.TrimSpace(help.Text())
	}
	return ""
}

func findHelp(el *etree.Element) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == "help" {
			return child
		}
		if found := findHelp(child); found != nil {
			return found
		}
	}
	return nil
}

// HTML renders markdown help to HTML.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render help: %w", err)
	}
	return buf.String(), nil
}

// Text renders markdown help and flattens the result to plain text, one
// blank line between blocks.
func Text(markdown string) (string, error) {
	rendered, err := HTML(markdown)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return "", fmt.Errorf("parse rendered help: %w", err)
	}

	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "p", "li", "h1", "h2", "h3", "h4", "h5", "h6", "pre", "blockquote":
				if t := textContent(n); t != "" {
					blocks = append(blocks, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(blocks, "\n\n"), nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}
