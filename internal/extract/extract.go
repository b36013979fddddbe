// Package extract walks a directory of rendered HTML documentation and pulls
// out the prose of each page, the way a doc site's reader view would.
package extract

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// contentSelector is the fixed CSS selector every rendered page is expected
// to expose its prose under. This mirrors rustdoc's convention and is
// treated as a contract of the renderer driver, not a per-ecosystem detail.
const contentSelector = "section#main-content.content"

// Document is an extracted (relative path, prose) pair.
type Document struct {
	Path    string
	Content string
}

// candidate tracks, per basename, the best file seen so far.
type candidate struct {
	absPath string
	relPath string
	size    int64
}

// Extract walks root recursively, selecting every *.html file that is not
// under a path component named "src", deduplicating by basename (keeping the
// largest file, except root-level index.html which always wins over nested
// module landing pages), and extracting each survivor's main-content prose.
//
// A single bad file (unreadable, non-UTF-8 name) is warned and skipped; a
// page without the content selector is skipped silently. Extract never
// aborts for one file.
func Extract(root string) ([]Document, error) {
	byBase := make(map[string]*candidate)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("extract: walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".html" {
			return nil
		}
		if hasSrcComponent(root, path) {
			return nil
		}
		if !utf8.ValidString(path) {
			slog.Warn("extract: skipping non-UTF-8 path", "path", path)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			slog.Warn("extract: relative path failed", "path", path, "error", err)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("extract: stat failed", "path", path, "error", err)
			return nil
		}

		base := filepath.Base(path)
		isRootIndex := base == "index.html" && filepath.Dir(rel) == "."

		if base == "index.html" && !isRootIndex {
			// Nested module landing pages are redundant with the root's.
			return nil
		}

		cur, exists := byBase[base]
		if !exists || info.Size() > cur.size || isRootIndex {
			byBase[base] = &candidate{absPath: path, relPath: rel, size: info.Size()}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract: walking %s: %w", root, err)
	}

	bases := make([]string, 0, len(byBase))
	for base := range byBase {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	docs := make([]Document, 0, len(bases))
	for _, base := range bases {
		cand := byBase[base]
		content, err := extractOne(cand.absPath)
		if err != nil {
			slog.Warn("extract: skipping file", "path", cand.absPath, "error", err)
			continue
		}
		if content == "" {
			continue
		}
		docs = append(docs, Document{Path: filepath.ToSlash(cand.relPath), Content: content})
	}

	return docs, nil
}

func hasSrcComponent(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "src" {
			return true
		}
	}
	return false
}

func extractOne(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	sel := doc.Find(contentSelector)
	if sel.Length() == 0 {
		return "", nil
	}

	var lines []string
	for _, n := range sel.Nodes {
		walkTextNodes(n, &lines)
	}

	return strings.Join(lines, "\n"), nil
}

// walkTextNodes collects every descendant text node's trimmed content,
// dropping empties.
func walkTextNodes(n *html.Node, lines *[]string) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*lines = append(*lines, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkTextNodes(c, lines)
	}
}
