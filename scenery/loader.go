// scenery/loader.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Tile is a loaded terrain tile. A tile that no scenery root provides is
// still loaded; it is open water and has no objects.
type Tile struct {
	Bucket  Bucket
	Objects []string // models referenced by the tile's .stg files
	Present bool     // some scenery root has a .stg for the tile
}

// TileLoader loads the tile for a bucket. Implementations are called
// concurrently from the pager's workers.
type TileLoader interface {
	Load(ctx context.Context, b Bucket) (*Tile, error)
}

// DirLoader loads tiles from FlightGear-style scenery directories.
type DirLoader struct {
	Roots []string
}

func (d DirLoader) Load(ctx context.Context, b Bucket) (*Tile, error) {
	tile := &Tile{Bucket: b}
	for _, root := range d.Roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fn := filepath.Join(root, "Terrain", filepath.FromSlash(b.BasePath()), fmt.Sprintf("%d.stg", b.Index()))
		objs, err := readSTG(fn)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
		tile.Present = true
		tile.Objects = append(tile.Objects, objs...)
	}
	return tile, nil
}

// readSTG returns the model names from the OBJECT* lines of an .stg file.
func readSTG(fn string) ([]string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var objs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if strings.HasPrefix(fields[0], "OBJECT") {
			objs = append(objs, fields[1])
		}
	}
	return objs, sc.Err()
}
