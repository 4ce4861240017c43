package imagery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"himawari-desktop/internal/common"
)

// DefaultWorkers is the default number of tiles fetched concurrently
const DefaultWorkers = 8

// TileFetcher defines the interface for fetching encoded tile data
type TileFetcher interface {
	FetchTile(ctx context.Context, spec common.GridSpec, ts time.Time, coord common.TileCoordinate) ([]byte, error)
}

// TileDownloader fetches every tile of a grid with a bounded worker pool and
// composites them into one canvas
type TileDownloader struct {
	workers int
	fetcher TileFetcher

	// Verbose enables one log line per tile
	Verbose bool
}

// NewTileDownloader creates a new tile downloader
func NewTileDownloader(workers int, fetcher TileFetcher) *TileDownloader {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &TileDownloader{
		workers: workers,
		fetcher: fetcher,
	}
}

// Workers returns the configured in-flight bound
func (d *TileDownloader) Workers() int {
	return d.workers
}

// Assemble downloads all level² tiles for ts and stitches them into a canvas.
// Any tile failure fails the whole assembly: in-flight siblings are cancelled
// and the returned *common.AssemblyError names every tile that failed on its
// own. onProgress, if set, is called from worker goroutines after each pasted
// tile and must be safe for concurrent use.
func (d *TileDownloader) Assemble(
	ctx context.Context,
	spec common.GridSpec,
	ts time.Time,
	onProgress func(current, total int),
) (*Canvas, error) {
	if d.fetcher == nil {
		return nil, fmt.Errorf("no tile fetcher configured")
	}
	canvas, err := NewCanvas(spec)
	if err != nil {
		return nil, err
	}

	total := spec.TileCount()
	workerCount := d.workers
	if total < workerCount {
		workerCount = total
	}
	log.Printf("[Assembler] Downloading %d tiles (%dx%d) with %d workers...", total, spec.Level, spec.Level, workerCount)

	sem := semaphore.NewWeighted(int64(workerCount))
	g, gctx := errgroup.WithContext(ctx)

	var downloaded atomic.Int64
	var mu sync.Mutex
	var failed []*common.TileError

	for _, coord := range spec.Coordinates() {
		// Blocks while workerCount tiles are in flight; fails once a sibling has failed.
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			result := d.fetchAndPaste(gctx, canvas, ts, coord)
			if !result.Success() {
				if gctx.Err() != nil && errors.Is(result.Err, context.Canceled) {
					return result.Err
				}
				log.Printf("[Assembler] Tile %s failed: %v", coord, result.Err)
				mu.Lock()
				failed = append(failed, &common.TileError{Coord: coord, Err: result.Err})
				mu.Unlock()
				return result.Err
			}

			count := downloaded.Add(1)
			if d.Verbose {
				log.Printf("[Assembler] Tile %s ok (%d bytes) %d/%d", coord, result.Bytes, count, total)
			}
			if onProgress != nil {
				onProgress(int(count), total)
			}
			return nil
		})
	}

	waitErr := g.Wait()

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool {
			if failed[i].Coord.X != failed[j].Coord.X {
				return failed[i].Coord.X < failed[j].Coord.X
			}
			return failed[i].Coord.Y < failed[j].Coord.Y
		})
		return nil, &common.AssemblyError{Total: total, Failed: failed}
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !canvas.Complete() {
		return nil, fmt.Errorf("assembly incomplete: missing tiles %v", canvas.Missing())
	}

	log.Printf("[Assembler] Processed %d/%d tiles", canvas.Written(), total)
	return canvas, nil
}

// fetchAndPaste handles one coordinate end to end
func (d *TileDownloader) fetchAndPaste(ctx context.Context, canvas *Canvas, ts time.Time, coord common.TileCoordinate) common.TileDownloadResult {
	result := common.TileDownloadResult{Coord: coord}

	data, err := d.fetcher.FetchTile(ctx, canvas.Spec, ts, coord)
	if err != nil {
		result.Err = err
		return result
	}
	result.Bytes = len(data)

	tile, err := DecodeTile(data, canvas.Spec)
	if err != nil {
		result.Err = err
		return result
	}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}
	result.Err = canvas.Paste(coord, tile)
	return result
}
