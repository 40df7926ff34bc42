package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func testRoot(out *bytes.Buffer) *cli.Command {
	return &cli.Command{
		Name:     "bundlectl",
		Writer:   out,
		Commands: []*cli.Command{packCmd(), unpackCmd(), lsCmd()},
	}
}

func TestPackUnpack(t *testing.T) {
	dir := t.TempDir()
	m1 := filepath.Join(dir, "3716601_3930318588611247096.manifest")
	m2 := filepath.Join(dir, "loose.manifest")
	lua := filepath.Join(dir, "script.lua")
	require.NoError(t, os.WriteFile(m1, []byte{0, 1, 2}, 0o644))
	require.NoError(t, os.WriteFile(m2, []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(lua, []byte("addappid(1)"), 0o644))

	packed := filepath.Join(dir, "bundle.txt")
	ctx := context.Background()
	require.NoError(t, testRoot(&bytes.Buffer{}).Run(ctx, []string{"bundlectl", "pack", "--lua", lua, "-o", packed, m1, m2}))

	outDir := filepath.Join(dir, "out")
	require.NoError(t, testRoot(&bytes.Buffer{}).Run(ctx, []string{"bundlectl", "unpack", "--game", "Portal", "--depot", "400", "-d", outDir, packed}))

	got, err := os.ReadFile(filepath.Join(outDir, "3716601_3930318588611247096.manifest"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, got)

	got, err = os.ReadFile(filepath.Join(outDir, "400_2.manifest"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	got, err = os.ReadFile(filepath.Join(outDir, "Portal.lua"))
	require.NoError(t, err)
	assert.Equal(t, []byte("addappid(1)"), got)

	var listing bytes.Buffer
	require.NoError(t, testRoot(&listing).Run(ctx, []string{"bundlectl", "ls", "--game", "Portal", packed}))
	assert.Contains(t, listing.String(), "depot_2.manifest")
	assert.Contains(t, listing.String(), "Portal.lua")
}

func TestUnpackRejectsNonBundle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a bundle at all"), 0o644))

	err := testRoot(&bytes.Buffer{}).Run(context.Background(), []string{"bundlectl", "ls", path})
	assert.Error(t, err)
}

func TestPackNothing(t *testing.T) {
	err := testRoot(&bytes.Buffer{}).Run(context.Background(), []string{"bundlectl", "pack", "-o", filepath.Join(t.TempDir(), "x")})
	assert.Error(t, err)
}
