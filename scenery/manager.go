// scenery/manager.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenery

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
)

const (
	// MaxTiles bounds the number of resident tiles.
	MaxTiles = 2048
	// TileTTL is the wall-clock lifetime of a tile nobody asks for. The
	// sim-time keep-alive set by ScheduleScenery usually expires first.
	TileTTL = 10 * time.Minute

	requestQueueLength = 256
)

// Config configures a TileManager.
type Config struct {
	Loader    TileLoader
	Workers   int        // defaults to 4
	TerraSync *TerraSync // optional
	Index     *Index     // optional
	Logger    *log.Logger
}

type loadResult struct {
	bucket Bucket
	tile   *Tile
	err    error
}

type residentTile struct {
	*Tile
	keepAlive time.Time
}

// TileManager pages terrain tiles in around the positions it is asked
// about. Tiles are loaded by a pool of workers; results are picked up by
// Update on the caller's goroutine, so apart from the worker pool the
// manager is not safe for concurrent use.
type TileManager struct {
	cache   *expirable.LRU[int64, *residentTile]
	pending map[int64]time.Time // bucket index -> requested keep-alive
	now     time.Time

	requests chan Bucket
	results  chan loadResult
	cancel   context.CancelFunc
	eg       *errgroup.Group

	terrasync *TerraSync
	index     *Index
	lg        *log.Logger
}

func NewTileManager(cfg Config) *TileManager {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	tm := &TileManager{
		cache:     expirable.NewLRU[int64, *residentTile](MaxTiles, nil, TileTTL),
		pending:   make(map[int64]time.Time),
		requests:  make(chan Bucket, requestQueueLength),
		results:   make(chan loadResult, requestQueueLength),
		cancel:    cancel,
		eg:        eg,
		terrasync: cfg.TerraSync,
		index:     cfg.Index,
		lg:        cfg.Logger,
	}

	for range workers {
		eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case b := <-tm.requests:
					tile, err := cfg.Loader.Load(ctx, b)
					select {
					case tm.results <- loadResult{bucket: b, tile: tile, err: err}:
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}
	return tm
}

// Close stops the pager's workers.
func (tm *TileManager) Close() {
	tm.cancel()
	tm.eg.Wait()
	if tm.terrasync != nil {
		tm.terrasync.Close()
	}
}

// Update collects finished loads and drops tiles whose keep-alive has
// expired.
func (tm *TileManager) Update(now time.Time) {
	tm.now = now

	for {
		select {
		case r := <-tm.results:
			keepAlive := tm.pending[r.bucket.Index()]
			delete(tm.pending, r.bucket.Index())
			if r.err != nil {
				tm.lg.Warn("tile load failed", slog.String("tile", r.bucket.String()), slog.Any("error", r.err))
				continue
			}
			if r.tile.Present && tm.index != nil {
				tm.index.Add(r.bucket)
			}
			tm.cache.Add(r.bucket.Index(), &residentTile{Tile: r.tile, keepAlive: keepAlive})
			tm.lg.Debug("tile loaded", slog.String("tile", r.bucket.String()), slog.Int("objects", len(r.tile.Objects)))
		default:
			for _, idx := range tm.cache.Keys() {
				if t, ok := tm.cache.Peek(idx); ok && t.keepAlive.Before(now) {
					tm.cache.Remove(idx)
				}
			}
			return
		}
	}
}

// ScheduleScenery reports whether every tile within rangeM meters of p
// is loaded. With a non-zero duration it also queues the missing tiles,
// nearest first, and keeps the loaded ones resident for at least that
// long.
func (tm *TileManager) ScheduleScenery(p math.Point2LL, rangeM float64, duration time.Duration) bool {
	buckets := BucketsInRange(p, rangeM)

	ready := true
	var missing []Bucket
	for _, b := range buckets {
		t, ok := tm.cache.Peek(b.Index())
		if !ok {
			ready = false
			missing = append(missing, b)
			continue
		}
		if duration > 0 {
			if ka := tm.now.Add(duration); ka.After(t.keepAlive) {
				t.keepAlive = ka
			}
			tm.cache.Add(b.Index(), t)
		}
	}

	if duration > 0 && len(missing) > 0 {
		slices.SortFunc(missing, func(a, b Bucket) int {
			da, db := math.DistanceM(p, a.Center()), math.DistanceM(p, b.Center())
			return int(math.Sign(da - db))
		})
		for _, b := range missing {
			tm.request(b, tm.now.Add(duration))
		}
	}
	return ready
}

// IsTileDirSyncing reports whether TerraSync is downloading the given
// tile directory.
func (tm *TileManager) IsTileDirSyncing(dir string) bool {
	return tm.terrasync != nil && tm.terrasync.IsTileDirSyncing(dir)
}

// Loaded returns the resident tile for b, if any.
func (tm *TileManager) Loaded(b Bucket) (*Tile, bool) {
	t, ok := tm.cache.Peek(b.Index())
	if !ok {
		return nil, false
	}
	return t.Tile, true
}

func (tm *TileManager) Len() int { return tm.cache.Len() }

func (tm *TileManager) request(b Bucket, keepAlive time.Time) {
	idx := b.Index()
	if ka, ok := tm.pending[idx]; ok {
		if keepAlive.After(ka) {
			tm.pending[idx] = keepAlive
		}
		return
	}

	if tm.terrasync != nil {
		dir := b.BasePath()
		if tm.terrasync.IsTileDirSyncing(dir) {
			return
		}
		if tm.index == nil || !tm.index.Has(b) {
			if tm.terrasync.Request(dir) {
				// load once the download is done
				return
			}
		}
	}

	select {
	case tm.requests <- b:
		tm.pending[idx] = keepAlive
	default:
		// queue is full; the tile is asked for again on a later call
	}
}

// BucketsInRange returns the buckets that intersect the box of half-size
// rangeM centered at p.
func BucketsInRange(p math.Point2LL, rangeM float64) []Bucket {
	km := 2 * max(rangeM, 1) / 1000
	box := p.Latlong().Box(km, km)

	seen := make(map[int64]struct{})
	var buckets []Bucket
	add := func(lon, lat float64) {
		b := MakeBucket(math.Point2LL{lon, lat})
		if _, ok := seen[b.Index()]; !ok {
			seen[b.Index()] = struct{}{}
			buckets = append(buckets, b)
		}
	}

	south, north := max(box.SW.Lat, -90), min(box.NE.Lat, 89.999999)
	for lat := south; ; lat += BucketHeight {
		lat = min(lat, north)
		span := bucketSpan(lat)
		for lon := box.SW.Long; ; lon += span {
			lon = min(lon, box.NE.Long)
			add(lon, lat)
			if lon >= box.NE.Long {
				break
			}
		}
		if lat >= north {
			break
		}
	}
	return buckets
}
