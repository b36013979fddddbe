// Package render drives Go's own documentation toolchain (go mod, go doc)
// inside a throwaway workspace to produce HTML pages that internal/extract
// can read, mirroring the fixed rustdoc-style DOM contract regardless of
// which ecosystem's doc tool actually produced the page.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
)

// Workspace is an ephemeral module used to fetch and render one package's
// documentation. Its lifetime is owned by the caller (typically a Crate
// Entry): call Close when the package is evicted or the server shuts down.
type Workspace struct {
	dir string
}

// Dir returns the workspace's root directory.
func (w *Workspace) Dir() string { return w.dir }

// NewWorkspace wraps an existing directory as a Workspace. It exists so
// callers that need to stand in a fake renderer for tests — registry's
// ingestion tests, for instance — can hand back a Workspace without going
// through Render.
func NewWorkspace(dir string) *Workspace {
	return &Workspace{dir: dir}
}

// Close removes the workspace from disk.
func (w *Workspace) Close() error {
	if w == nil || w.dir == "" {
		return nil
	}
	return os.RemoveAll(w.dir)
}

// Driver renders a Go module's documentation into a directory tree that
// internal/extract can walk. execCommand and lookPath are overridable for
// tests, following the teacher's pattern for shelling out.
type Driver struct {
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
	lookPath    func(file string) (string, error)
}

// New creates a Driver using the real process and PATH lookup.
func New() *Driver {
	return &Driver{
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
	}
}

// Options configures a single render.
type Options struct {
	// Module is the Go module path to fetch and document, e.g.
	// "github.com/spf13/cobra".
	Module string
	// Version is a Go module version or query ("latest", "v1.2.3"). Empty
	// means "latest".
	Version string
	// Tags map the spec's "features" concept onto Go build tags passed to
	// `go doc -tags`.
	Tags []string
}

// Render fetches Module@Version into a scratch module and renders its
// exported API as a single HTML page (doc/<module>/index.html) under a
// fresh Workspace. The
// caller owns the returned Workspace and must Close it eventually.
func (d *Driver) Render(ctx context.Context, opts Options) (*Workspace, error) {
	if opts.Module == "" {
		return nil, doceerrors.New(doceerrors.RenderFailed, "module path is required", nil)
	}
	if _, err := d.lookPath("go"); err != nil {
		return nil, doceerrors.New(doceerrors.IoFailed, "go toolchain not found on PATH", err)
	}

	dir, err := os.MkdirTemp("", "pkgdocs-render-*")
	if err != nil {
		return nil, doceerrors.New(doceerrors.IoFailed, "creating render workspace", err)
	}
	ws := &Workspace{dir: dir}

	if err := d.initModule(ctx, ws); err != nil {
		ws.Close()
		return nil, err
	}
	if err := d.fetchModule(ctx, ws, opts); err != nil {
		ws.Close()
		return nil, err
	}

	docText, err := d.runGoDoc(ctx, ws, opts)
	if err != nil {
		ws.Close()
		return nil, err
	}

	if err := writeDocTree(ws.dir, opts.Module, docText); err != nil {
		ws.Close()
		return nil, err
	}

	return ws, nil
}

func (d *Driver) initModule(ctx context.Context, ws *Workspace) error {
	goMod := "module pkgdocsrender\n\ngo 1.21\n"
	if err := os.WriteFile(filepath.Join(ws.dir, "go.mod"), []byte(goMod), 0o644); err != nil {
		return doceerrors.New(doceerrors.IoFailed, "writing scratch go.mod", err)
	}
	placeholder := "package pkgdocsrender\n"
	if err := os.WriteFile(filepath.Join(ws.dir, "doc.go"), []byte(placeholder), 0o644); err != nil {
		return doceerrors.New(doceerrors.IoFailed, "writing placeholder source", err)
	}
	return nil
}

func (d *Driver) fetchModule(ctx context.Context, ws *Workspace, opts Options) error {
	version := opts.Version
	if version == "" {
		version = "latest"
	}
	target := fmt.Sprintf("%s@%s", opts.Module, version)

	cmd := d.execCommand(ctx, "go", "get", target)
	cmd.Dir = ws.dir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return doceerrors.New(doceerrors.RenderFailed,
			fmt.Sprintf("go get %s failed: %s", target, strings.TrimSpace(stderr.String())), err)
	}

	dl := d.execCommand(ctx, "go", "mod", "download")
	dl.Dir = ws.dir
	if err := dl.Run(); err != nil {
		return doceerrors.New(doceerrors.RenderFailed, "go mod download failed", err)
	}
	return nil
}

func (d *Driver) runGoDoc(ctx context.Context, ws *Workspace, opts Options) (string, error) {
	args := []string{"doc", "-all"}
	if len(opts.Tags) > 0 {
		args = append(args, "-tags", strings.Join(opts.Tags, ","))
	}
	args = append(args, opts.Module)

	cmd := d.execCommand(ctx, "go", args...)
	cmd.Dir = ws.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", doceerrors.New(doceerrors.RenderFailed,
			fmt.Sprintf("go doc %s failed: %s", opts.Module, strings.TrimSpace(stderr.String())), err)
	}
	if stdout.Len() == 0 {
		return "", doceerrors.New(doceerrors.RenderFailed, "go doc produced no output", nil)
	}
	return stdout.String(), nil
}

// writeDocTree wraps the plain-text `go doc -all` output in the same DOM
// shape the HTML extractor expects from any renderer: a single
// section#main-content.content element holding one paragraph per non-empty
// line, under <workspace>/doc/<module>/index.html.
func writeDocTree(workspaceDir, module, docText string) error {
	outDir := filepath.Join(workspaceDir, "doc", filepath.FromSlash(module))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return doceerrors.New(doceerrors.IoFailed, "creating doc output directory", err)
	}

	var body strings.Builder
	body.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"></head><body>`)
	body.WriteString(`<section id="main-content" class="content">`)
	for _, line := range strings.Split(docText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		body.WriteString("<p>")
		body.WriteString(html.EscapeString(trimmed))
		body.WriteString("</p>")
	}
	body.WriteString(`</section></body></html>`)

	indexPath := filepath.Join(outDir, "index.html")
	if err := os.WriteFile(indexPath, []byte(body.String()), 0o644); err != nil {
		return doceerrors.New(doceerrors.IoFailed, "writing rendered doc page", err)
	}
	return nil
}

// FindDocRoot walks root (root itself included) searching for exactly one
// directory containing an index.html, the convention doc tools use to mark a
// package's doc root.
// Zero or more than one match is RenderOutputAmbiguous.
func FindDocRoot(root string) (string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if _, statErr := os.Stat(filepath.Join(path, "index.html")); statErr == nil {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", doceerrors.New(doceerrors.IoFailed, "walking render output", err)
	}

	switch len(matches) {
	case 0:
		return "", doceerrors.New(doceerrors.RenderOutputAmbiguous, "no index.html found under render output", nil)
	case 1:
		return matches[0], nil
	default:
		return "", doceerrors.New(doceerrors.RenderOutputAmbiguous,
			fmt.Sprintf("%d candidate doc roots found, expected exactly one", len(matches)), nil).
			WithDetail("candidates", strings.Join(matches, ", "))
	}
}
