package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/brittlewing/zipflow"
)

func newCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Aliases:   []string{"c"},
		Usage:     "create an archive from files and directories",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			outFlag("archive path to write (default: stdout)"),
			passwordFlag(),
			&cli.IntFlag{
				Name:  "level",
				Usage: "DEFLATE compression level (0 disables compression)",
				Value: 6,
			},
			&cli.StringFlag{
				Name:  "comment",
				Usage: "archive comment",
			},
		},
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return fmt.Errorf("%w: create: at least one PATH is required", ErrArgs)
			}
			return runCreate(c, paths)
		},
	}
}

func runCreate(c *cli.Context, paths []string) error {
	ctx := context.Background()

	out := c.String("out")
	var (
		sink zipflow.Sink
		f    *os.File
		err  error
	)
	if out == "" {
		sink = zipflow.NewMemorySink()
	} else {
		f, err = os.Create(out)
		if err != nil {
			return fmt.Errorf("%w: creating %s: %w", ErrArgs, out, err)
		}
		defer f.Close()
		sink = zipflow.NewFileSink(f)
	}

	w := zipflow.NewWriter(sink, zipflow.CurrentConfig())
	password := c.String("password")
	level := c.Int("level")

	for _, root := range paths {
		if err := addPath(ctx, w, root, level, password); err != nil {
			return fmt.Errorf("%w: adding %s: %w", ErrArgs, root, err)
		}
	}

	result, err := w.Close(ctx, c.String("comment"))
	if err != nil {
		return fmt.Errorf("%w: closing archive: %w", ErrArgs, err)
	}

	if out != "" {
		return nil
	}
	content, ok := result.(io.ReadSeeker)
	if !ok {
		return fmt.Errorf("%w: unexpected archive result type %T", ErrArgs, result)
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = io.Copy(c.App.Writer, content)
	return err
}

// addPath walks root, adding a directory entry for root itself (unless it
// is a single regular file) and one entry per descendant, preserving mode
// and modification time.
func addPath(ctx context.Context, w *zipflow.Writer, root string, level int, password string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	base := filepathBase(root)

	if !info.IsDir() {
		src, f, err := zipflow.OpenFileSource(root)
		if err != nil {
			return err
		}
		defer f.Close()
		return w.Add(ctx, base, src, zipflow.AddOptions{
			Level:    level,
			Password: password,
			Mode:     info.Mode(),
			ModTime:  info.ModTime(),
		})
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(filepath.Dir(root), path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			return w.Add(ctx, rel, nil, zipflow.AddOptions{
				Directory: true,
				Mode:      info.Mode(),
				ModTime:   info.ModTime(),
			})
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		src, f, err := zipflow.OpenFileSource(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return w.Add(ctx, rel, src, zipflow.AddOptions{
			Level:    level,
			Password: password,
			Mode:     info.Mode(),
			ModTime:  info.ModTime(),
		})
	})
}
