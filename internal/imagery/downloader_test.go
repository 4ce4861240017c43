package imagery

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"himawari-desktop/internal/common"
	"himawari-desktop/internal/himawari"
)

func tileColor(c common.TileCoordinate) color.RGBA {
	return color.RGBA{R: uint8(10 + c.X*40), G: uint8(10 + c.Y*40), B: 200, A: 255}
}

// fakeFetcher serves pre-encoded solid tiles and can fail or stall chosen coordinates.
type fakeFetcher struct {
	tiles    map[common.TileCoordinate][]byte
	fail     map[common.TileCoordinate]error
	stall    map[common.TileCoordinate]bool
	inFlight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64
	mu       sync.Mutex
	seen     map[common.TileCoordinate]int
}

func newFakeFetcher(t testing.TB, spec common.GridSpec) *fakeFetcher {
	f := &fakeFetcher{
		tiles: make(map[common.TileCoordinate][]byte),
		fail:  make(map[common.TileCoordinate]error),
		stall: make(map[common.TileCoordinate]bool),
		seen:  make(map[common.TileCoordinate]int),
	}
	for _, c := range spec.Coordinates() {
		f.tiles[c] = encodePNG(t, solidTile(spec.TileWidth, spec.TileHeight, tileColor(c)))
	}
	return f
}

func (f *fakeFetcher) FetchTile(ctx context.Context, spec common.GridSpec, ts time.Time, c common.TileCoordinate) ([]byte, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	f.mu.Lock()
	f.seen[c]++
	f.mu.Unlock()

	if f.stall[c] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	time.Sleep(time.Millisecond)
	if err := f.fail[c]; err != nil {
		return nil, err
	}
	return f.tiles[c], nil
}

func TestAssemble_PlacesEveryColourBlock(t *testing.T) {
	spec := common.DefaultGridSpec()
	fetcher := newFakeFetcher(t, spec)
	d := NewTileDownloader(4, fetcher)

	var progressCalls atomic.Int64
	var lastTotal atomic.Int64
	canvas, err := d.Assemble(context.Background(), spec, time.Now(), func(current, total int) {
		progressCalls.Add(1)
		lastTotal.Store(int64(total))
	})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if b := canvas.Image.Bounds(); b.Dx() != 2200 || b.Dy() != 2200 {
		t.Fatalf("canvas = %v, want 2200x2200", b)
	}
	if !canvas.Complete() {
		t.Fatalf("canvas incomplete, missing %v", canvas.Missing())
	}

	for _, c := range spec.Coordinates() {
		want := tileColor(c)
		r := spec.TileRect(c)
		for _, p := range [][2]int{
			{r.Min.X, r.Min.Y},
			{r.Max.X - 1, r.Min.Y},
			{r.Min.X, r.Max.Y - 1},
			{r.Max.X - 1, r.Max.Y - 1},
			{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2},
		} {
			if got := canvas.Image.RGBAAt(p[0], p[1]); got != want {
				t.Fatalf("tile %s pixel %v = %v, want %v", c, p, got, want)
			}
		}
	}

	if progressCalls.Load() != 16 || lastTotal.Load() != 16 {
		t.Fatalf("progress calls = %d total = %d, want 16/16", progressCalls.Load(), lastTotal.Load())
	}
	for c, n := range fetcher.seen {
		if n != 1 {
			t.Fatalf("tile %s fetched %d times, want 1", c, n)
		}
	}
	if len(fetcher.seen) != 16 {
		t.Fatalf("fetched %d distinct tiles, want 16", len(fetcher.seen))
	}
}

func TestAssemble_RespectsWorkerBound(t *testing.T) {
	spec := common.GridSpec{Level: 8, TileWidth: 4, TileHeight: 4}
	fetcher := newFakeFetcher(t, spec)
	d := NewTileDownloader(3, fetcher)

	if _, err := d.Assemble(context.Background(), spec, time.Now(), nil); err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if peak := fetcher.peak.Load(); peak > 3 {
		t.Fatalf("peak in-flight fetches = %d, want <= 3", peak)
	}
}

func TestAssemble_SingleFailureFailsRun(t *testing.T) {
	spec := common.GridSpec{Level: 4, TileWidth: 4, TileHeight: 4}
	fetcher := newFakeFetcher(t, spec)
	bad := common.TileCoordinate{X: 2, Y: 3}
	fetcher.fail[bad] = fmt.Errorf("%w: request failed with status: 404", common.ErrNetwork)

	canvas, err := NewTileDownloader(2, fetcher).Assemble(context.Background(), spec, time.Now(), nil)
	if canvas != nil {
		t.Fatalf("Assemble returned a canvas despite a failed tile")
	}
	var aerr *common.AssemblyError
	if !errors.As(err, &aerr) {
		t.Fatalf("error = %v, want *common.AssemblyError", err)
	}
	if len(aerr.Failed) != 1 || aerr.Failed[0].Coord != bad {
		t.Fatalf("failed = %v, want only %s", aerr.Coordinates(), bad)
	}
	if !errors.Is(err, common.ErrNetwork) {
		t.Fatalf("errors.Is(ErrNetwork) = false for %v", err)
	}
	if !strings.Contains(err.Error(), bad.String()) {
		t.Fatalf("message %q does not name %s", err.Error(), bad)
	}
}

func TestAssemble_CorruptTileIsDecodeError(t *testing.T) {
	spec := common.GridSpec{Level: 4, TileWidth: 4, TileHeight: 4}
	fetcher := newFakeFetcher(t, spec)
	fetcher.tiles[common.TileCoordinate{X: 0, Y: 1}] = []byte("definitely not a png")

	_, err := NewTileDownloader(4, fetcher).Assemble(context.Background(), spec, time.Now(), nil)
	if !errors.Is(err, common.ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
	if errors.Is(err, common.ErrNetwork) {
		t.Fatalf("decode failure also matched ErrNetwork: %v", err)
	}
}

func TestAssemble_FailureCancelsSiblings(t *testing.T) {
	spec := common.GridSpec{Level: 4, TileWidth: 4, TileHeight: 4}
	fetcher := newFakeFetcher(t, spec)
	for _, c := range spec.Coordinates() {
		fetcher.stall[c] = true
	}
	bad := common.TileCoordinate{X: 0, Y: 0}
	fetcher.stall[bad] = false
	fetcher.fail[bad] = fmt.Errorf("%w: connection reset", common.ErrNetwork)

	done := make(chan error, 1)
	go func() {
		_, err := NewTileDownloader(4, fetcher).Assemble(context.Background(), spec, time.Now(), nil)
		done <- err
	}()

	select {
	case err := <-done:
		var aerr *common.AssemblyError
		if !errors.As(err, &aerr) || len(aerr.Failed) != 1 || aerr.Failed[0].Coord != bad {
			t.Fatalf("error = %v, want single failure at %s", err, bad)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Assemble did not return after a failure; stalled siblings were not cancelled")
	}
	if calls := fetcher.calls.Load(); calls >= int64(spec.TileCount()) {
		t.Fatalf("fetched %d tiles after failure, want queued tiles to be skipped", calls)
	}
}

func TestAssemble_ParentCancellation(t *testing.T) {
	spec := common.GridSpec{Level: 4, TileWidth: 4, TileHeight: 4}
	fetcher := newFakeFetcher(t, spec)
	for _, c := range spec.Coordinates() {
		fetcher.stall[c] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	canvas, err := NewTileDownloader(4, fetcher).Assemble(ctx, spec, time.Now(), nil)
	if canvas != nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("Assemble = (%v, %v), want context.Canceled", canvas, err)
	}
	var aerr *common.AssemblyError
	if errors.As(err, &aerr) {
		t.Fatalf("cancellation reported as tile failures: %v", err)
	}
}

func TestAssemble_TileTimeoutAbortsPromptly(t *testing.T) {
	spec := common.GridSpec{Level: 4, TileWidth: 4, TileHeight: 4}
	fetcher := newFakeFetcher(t, spec)
	slow := common.TileCoordinate{X: 3, Y: 2}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, fmt.Sprintf("_%d_%d.png", slow.X, slow.Y)) {
			select {
			case <-r.Context().Done():
			case <-time.After(10 * time.Second):
			}
			return
		}
		var x, y int
		name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if _, err := fmt.Sscanf(name[strings.Index(name, "_")+1:], "%d_%d.png", &x, &y); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write(fetcher.tiles[common.TileCoordinate{X: x, Y: y}])
	}))
	t.Cleanup(server.Close)

	client := himawari.NewClient(himawari.Options{TileBaseURL: server.URL, Timeout: 200 * time.Millisecond})
	start := time.Now()
	_, err := NewTileDownloader(4, client).Assemble(context.Background(), spec, time.Date(2023, 6, 1, 3, 40, 0, 0, time.UTC), nil)
	elapsed := time.Since(start)

	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	var aerr *common.AssemblyError
	if !errors.As(err, &aerr) || aerr.Failed[0].Coord != slow {
		t.Fatalf("error = %v, want failure at %s", err, slow)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("Assemble took %v after a 200ms timeout", elapsed)
	}
}

func TestAssemble_NoFetcher(t *testing.T) {
	if _, err := NewTileDownloader(1, nil).Assemble(context.Background(), common.DefaultGridSpec(), time.Now(), nil); err == nil {
		t.Fatalf("Assemble without fetcher returned nil error")
	}
}
