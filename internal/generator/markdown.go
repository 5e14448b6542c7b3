package generator

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Markdown renders plain Markdown trees in process with goldmark, no
// external tool required. Every .md file becomes an .html file at the same
// relative path; README.md additionally becomes index.html when the
// directory has none. Non-Markdown files are copied through untouched.
type Markdown struct{}

func (Markdown) Kind() Kind { return KindMarkdown }

func (Markdown) OutputDir(root string) string {
	return filepath.Join(root, "_rendered")
}

// Build ignores manifest: rendering is in-process and needs no installed
// dependencies.
func (m Markdown) Build(ctx context.Context, root, docsDir, _ string, sink OutputSink) error {
	if sink == nil {
		sink = func(string) {}
	}
	src := filepath.Join(root, filepath.FromSlash(docsDir))
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		src = root
	}
	out := m.OutputDir(root)
	if err := os.MkdirAll(out, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)

	rendered := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() {
			// Rendering into a subdirectory of root; never recurse into it.
			if path == out || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if !strings.EqualFold(filepath.Ext(name), ".md") {
			return copyFile(path, filepath.Join(out, rel))
		}

		source, err := os.ReadFile(path) // #nosec G304 - path comes from WalkDir under src
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		var body bytes.Buffer
		if err := md.Convert(source, &body); err != nil {
			return fmt.Errorf("render %s: %w", rel, err)
		}
		page := wrapPage(pageTitle(rel), body.Bytes())

		htmlRel := rel[:len(rel)-len(filepath.Ext(rel))] + ".html"
		dest := filepath.Join(out, htmlRel)
		if err := writePage(dest, page); err != nil {
			return err
		}
		sink(fmt.Sprintf("rendered %s", filepath.ToSlash(rel)))
		rendered++

		if strings.EqualFold(name, "README.md") {
			index := filepath.Join(filepath.Dir(dest), "index.html")
			if _, err := os.Stat(index); os.IsNotExist(err) {
				if err := writePage(index, page); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	sink(fmt.Sprintf("rendered %d markdown files", rendered))
	return nil
}

func pageTitle(rel string) string {
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func wrapPage(title string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n</head>\n<body>\n")
	b.Write(body)
	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

func writePage(dest string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create page directory: %w", err)
	}
	if err := os.WriteFile(dest, content, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src) // #nosec G304 - src comes from WalkDir
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	return writePage(dest, data)
}
