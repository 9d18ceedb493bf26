package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"sigs.k8s.io/release-utils/version"
)

// ErrArgs is wrapped around every error a zipflow command returns: a
// missing or malformed command-line argument, and any failure while
// opening, reading, writing or extracting an archive.
var ErrArgs = errors.New("zipflow")

func newApp() *cli.App {
	return &cli.App{
		Name:  "zipflow",
		Usage: "create, list and extract ZIP archives",
		Description: strings.Join([]string{
			"zipflow is a ZIP archive tool supporting ZIP64 and WinZip-AES",
			"password-protected entries.",
		}, "\n"),
		Commands: []*cli.Command{
			newCreateCommand(),
			newListCommand(),
			newExtractCommand(),
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:               "version",
				Usage:              "print version information and exit",
				DisableDefaultText: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("version") {
				info := version.GetVersionInfo()
				fmt.Fprintf(c.App.Writer, "%s %s\n", c.App.Name, info.GitVersion)
				return nil
			}
			return cli.ShowAppHelp(c)
		},
	}
}

func passwordFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "password for encrypted entries",
	}
}

func outFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   usage,
	}
}

func filepathBase(p string) string { return filepath.Base(p) }
