package main

import (
	"context"
	"fmt"

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/brittlewing/zipflow"
)

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"l"},
		Usage:     "list an archive's entries",
		ArgsUsage: "ARCHIVE",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("%w: list: missing archive path", ErrArgs)
			}
			return runList(c, path)
		},
	}
}

func runList(c *cli.Context, path string) error {
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

	tbl := table.New("name", "size", "compressed", "method", "encrypted", "modified").WithWriter(c.App.Writer)
	for _, e := range r.Entries() {
		method := "store"
		if e.Method == zipflow.Deflate {
			method = "deflate"
		}
		tbl.AddRow(
			e.Name,
			e.UncompressedSize,
			e.CompressedSize,
			method,
			e.Encrypted,
			e.Modified.Format("2006-01-02 15:04:05"),
		)
	}
	tbl.Print()

	if comment := r.Comment(); comment != "" {
		fmt.Fprintf(c.App.Writer, "\ncomment: %s\n", comment)
	}
	return nil
}
