package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"manifesthub/internal/bundle"
	"manifesthub/internal/services"
)

func packCmd() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Encode manifest files and an optional Lua script into one bundle",
		ArgsUsage: "<manifest>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "lua",
				Usage: "Path to a Lua script to include",
			},
			&cli.StringFlag{
				Name:  "o",
				Usage: "Output file (default stdout)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			b, err := packFiles(cmd.Args().Slice(), cmd.String("lua"))
			if err != nil {
				return err
			}
			text, err := bundle.Encode(b)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.String("o"), text); err != nil {
				return err
			}
			log.Info("packed bundle", "manifests", len(b.Manifests), "script", b.Script != nil, "size", humanize.IBytes(uint64(b.Size())))
			return nil
		},
	}
}

func unpackCmd() *cli.Command {
	return &cli.Command{
		Name:      "unpack",
		Usage:     "Extract every file from a bundle into a directory",
		ArgsUsage: "<bundle|->",
		Flags:     append(recordFlags(), &cli.StringFlag{Name: "d", Usage: "Output directory", Value: "."}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files, err := readFiles(cmd)
			if err != nil {
				return err
			}
			dir := cmd.String("d")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			for _, f := range files {
				path := filepath.Join(dir, f.Name)
				if err := os.WriteFile(path, f.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				log.Info("wrote", "file", path, "size", humanize.IBytes(uint64(len(f.Data))))
			}
			return nil
		},
	}
}

func lsCmd() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List the files a bundle would extract to",
		ArgsUsage: "<bundle|->",
		Flags:     recordFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files, err := readFiles(cmd)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(cmd.Root().Writer, "%10s  %s\n", humanize.IBytes(uint64(len(f.Data))), f.Name)
			}
			return nil
		},
	}
}

func recordFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "game", Usage: "Game name used for the Lua file"},
		&cli.StringFlag{Name: "depot", Usage: "Record depot id for untagged manifests"},
		&cli.StringFlag{Name: "manifest", Usage: "Record manifest id for an untagged manifest"},
	}
}

// packFiles builds a bundle from paths, tagging each manifest with the ids
// found in its file name.
func packFiles(manifests []string, lua string) (bundle.Bundle, error) {
	var b bundle.Bundle
	for _, path := range manifests {
		data, err := os.ReadFile(path)
		if err != nil {
			return b, err
		}
		m := bundle.Manifest{Data: data}
		if depot, manifest := services.ParseManifestFilename(path); bundle.CanEmbed(depot, manifest) {
			m.DepotID, m.ManifestID = depot, manifest
		} else {
			log.Warn("no depot/manifest ids in file name", "file", path)
		}
		b.Manifests = append(b.Manifests, m)
	}
	if lua != "" {
		data, err := os.ReadFile(lua)
		if err != nil {
			return b, err
		}
		b.Script = &bundle.Script{Data: data}
	}
	return b, nil
}

func readFiles(cmd *cli.Command) ([]bundle.File, error) {
	if cmd.Args().Len() != 1 {
		return nil, errors.New("expected exactly one bundle path (or - for stdin)")
	}
	var (
		data []byte
		err  error
	)
	if path := cmd.Args().First(); path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	b, err := bundle.Decode(string(data))
	if err != nil {
		return nil, err
	}
	return bundle.Files(b, bundle.Record{
		DepotID:    cmd.String("depot"),
		ManifestID: cmd.String("manifest"),
		GameName:   cmd.String("game"),
	}), nil
}

func writeOutput(path, text string) error {
	if path == "" {
		_, err := io.WriteString(os.Stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
