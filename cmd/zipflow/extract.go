package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/brittlewing/zipflow"
)

func newExtractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Aliases:   []string{"x"},
		Usage:     "extract an archive's entries to disk",
		ArgsUsage: "ARCHIVE",
		Flags: []cli.Flag{
			outFlag("directory to extract into (default: current directory)"),
			passwordFlag(),
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("%w: extract: missing archive path", ErrArgs)
			}
			return runExtract(c, path)
		},
	}
}

func runExtract(c *cli.Context, path string) error {
	ctx := context.Background()

	src, f, err := zipflow.OpenFileSource(path)
	if err != nil {
		return fmt.Errorf("%w: opening archive: %w", ErrArgs, err)
	}
	defer f.Close()

	r, err := zipflow.NewReader(ctx, src, zipflow.CurrentConfig())
	if err != nil {
		return fmt.Errorf("%w: reading archive: %w", ErrArgs, err)
	}

	dest := c.String("out")
	if dest == "" {
		dest = "."
	}
	password := c.String("password")

	for _, e := range r.Entries() {
		if err := extractEntry(ctx, r, e, dest, password); err != nil {
			return fmt.Errorf("%w: extracting %s: %w", ErrArgs, e.Name, err)
		}
		fmt.Fprintln(c.App.Writer, e.Name)
	}
	return nil
}

// extractEntry writes e to dest/e.Name, creating intermediate directories
// and rejecting any entry whose cleaned path would escape dest.
func extractEntry(ctx context.Context, r *zipflow.Reader, e *zipflow.Entry, dest, password string) error {
	target, err := safeJoin(dest, e.Name)
	if err != nil {
		return err
	}

	if e.Directory {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	mode := e.Mode()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	sink := zipflow.NewFileSink(out)
	if err := r.ExtractTo(ctx, e, password, sink, nil); err != nil {
		return err
	}
	return os.Chtimes(target, e.Modified, e.Modified)
}

// safeJoin joins dest with an archive-relative name, refusing names that
// would traverse above dest after cleaning.
func safeJoin(dest, name string) (string, error) {
	cleaned := filepath.Clean(strings.TrimPrefix(name, "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry path %q escapes extraction directory", name)
	}
	return filepath.Join(dest, cleaned), nil
}
