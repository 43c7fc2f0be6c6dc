// scenery/terrasync.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenery

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/util"

	"golang.org/x/sync/errgroup"
)

// maxSyncDownloads bounds the number of concurrent object downloads.
const maxSyncDownloads = 8

// ObjectSource is the read side of a scenery bucket; *util.GCSClient
// implements it.
type ObjectSource interface {
	List(ctx context.Context, prefix string) (map[string]int64, error)
	GetReader(ctx context.Context, name string) (io.ReadCloser, error)
}

// TerraSync mirrors tile directories from a remote bucket into a local
// scenery root in the background.
type TerraSync struct {
	src  ObjectSource
	dest string

	mu      sync.Mutex
	syncing map[string]struct{}
	synced  map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	eg     errgroup.Group
	sem    chan struct{}
	lg     *log.Logger
}

// NewTerraSync returns a syncer that writes objects from src under dest.
func NewTerraSync(src ObjectSource, dest string, lg *log.Logger) *TerraSync {
	ctx, cancel := context.WithCancel(context.Background())
	return &TerraSync{
		src:     src,
		dest:    dest,
		syncing: make(map[string]struct{}),
		synced:  make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		sem:     make(chan struct{}, maxSyncDownloads),
		lg:      lg,
	}
}

// NewGCSTerraSync syncs from a GCS bucket. credsFile names a service
// account JSON file; it may be empty for public buckets.
func NewGCSTerraSync(bucket, credsFile, dest string, lg *log.Logger) (*TerraSync, error) {
	var config util.GCSClientConfig
	if credsFile != "" {
		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, err
		}
		config.Credentials = creds
	}
	client, err := util.MakeGCSClient(bucket, config)
	if err != nil {
		return nil, err
	}
	return NewTerraSync(client, dest, lg), nil
}

// Request starts syncing the given tile directory (a Bucket.BasePath)
// unless it is already syncing or has been synced. It returns true if a
// new sync was started.
func (ts *TerraSync) Request(dir string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, ok := ts.syncing[dir]; ok {
		return false
	}
	if _, ok := ts.synced[dir]; ok {
		return false
	}
	ts.syncing[dir] = struct{}{}

	ts.eg.Go(func() error {
		err := ts.syncDir(dir)

		ts.mu.Lock()
		// a failed sync is not retried; whatever made it to disk is used
		delete(ts.syncing, dir)
		ts.synced[dir] = struct{}{}
		ts.mu.Unlock()

		if err != nil {
			ts.lg.Warn("terrasync failed", slog.String("dir", dir), slog.Any("error", err))
		} else {
			ts.lg.Debug("terrasync done", slog.String("dir", dir))
		}
		return err
	})
	return true
}

// IsTileDirSyncing reports whether dir is being downloaded.
func (ts *TerraSync) IsTileDirSyncing(dir string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.syncing[dir]
	return ok
}

// Close cancels outstanding downloads and waits for them to exit.
func (ts *TerraSync) Close() error {
	ts.cancel()
	return ts.eg.Wait()
}

func (ts *TerraSync) syncDir(dir string) error {
	prefix := path.Join("Terrain", dir) + "/"
	objs, err := ts.src.List(ts.ctx, prefix)
	if err != nil {
		return err
	}

	var eg errgroup.Group
	for name := range objs {
		if strings.HasSuffix(name, "/") {
			continue
		}
		eg.Go(func() error {
			select {
			case ts.sem <- struct{}{}:
			case <-ts.ctx.Done():
				return ts.ctx.Err()
			}
			defer func() { <-ts.sem }()

			return ts.download(name)
		})
	}
	return eg.Wait()
}

func (ts *TerraSync) download(name string) error {
	r, err := ts.src.GetReader(ts.ctx, name)
	if err != nil {
		return err
	}
	defer r.Close()

	fn := filepath.Join(ts.dest, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(fn), filepath.Base(fn)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, fn)
}
