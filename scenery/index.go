// scenery/index.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenery

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/mmp/aitraffic/util"
)

// Index remembers which tiles have been found on disk so that a restart
// does not ask TerraSync for them again.
type Index struct {
	mu    sync.Mutex
	Tiles map[int64]string `msgpack:"tiles"` // bucket index -> base path
	dirty bool
}

func NewIndex() *Index {
	return &Index{Tiles: make(map[int64]string)}
}

// LoadIndex reads an index saved by Save. A missing file gives an empty
// index.
func LoadIndex(path string) (*Index, error) {
	idx := NewIndex()
	if _, err := util.RetrieveObject(path, idx); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewIndex(), nil
		}
		return NewIndex(), err
	}
	if idx.Tiles == nil {
		idx.Tiles = make(map[int64]string)
	}
	return idx, nil
}

func (x *Index) Add(b Bucket) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.Tiles[b.Index()]; !ok {
		x.Tiles[b.Index()] = b.BasePath()
		x.dirty = true
	}
}

func (x *Index) Has(b Bucket) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.Tiles[b.Index()]
	return ok
}

func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.Tiles)
}

// Save writes the index if it has changed since it was loaded.
func (x *Index) Save(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.dirty {
		return nil
	}
	if err := util.StoreObject(path, x); err != nil {
		return err
	}
	x.dirty = false
	return nil
}
