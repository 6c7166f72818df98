package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/starford/vowpost/internal/markup"
	"github.com/starford/vowpost/internal/parser"
	"github.com/starford/vowpost/internal/storage"
	"github.com/starford/vowpost/internal/toc"
	"github.com/starford/vowpost/internal/tocsync"
)

type syncFlags struct {
	write   bool
	slug    bool
	outline bool
}

// syncFile runs a synchronisation pass over the body of the file at path,
// keeping any front matter, and prints either the markup or the outline.
func syncFile(w io.Writer, path string, flags syncFlags) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	parsed, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("sync: parse %s: %w", path, err)
	}

	res, err := tocsync.Sync(parsed.Body, tocsync.Options{IDs: markup.IDOptions{Slug: flags.slug}})
	if err != nil {
		return fmt.Errorf("sync: %s: %w", path, err)
	}
	out := parser.Join(parsed.Header, res.Markup)

	if flags.write {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		if err := storage.WriteFileAtomic(path, out, info.Mode().Perm()); err != nil {
			return fmt.Errorf("sync: write %s: %w", path, err)
		}
	}

	if flags.outline {
		for _, n := range toc.Flatten(toc.Build(res.Headings)) {
			fmt.Fprintf(w, "%s%s #%s\n", strings.Repeat("  ", n.Indent), n.Text, n.ID)
		}
		return nil
	}
	if !flags.write {
		_, err = w.Write(out)
	}
	return err
}
