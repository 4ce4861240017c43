package himawari

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"himawari-desktop/internal/common"
	"himawari-desktop/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient(Options{
		MetadataURL: server.URL + "/latest.json",
		TileBaseURL: server.URL + "/img",
		Timeout:     timeout,
	})
	return c, server
}

func TestLatestTimestamp_ParsesDateField(t *testing.T) {
	var gotUserAgent string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"date":"2023-06-01 03:40:00","file":"PI_H08_20230601_0340_TRC_FLDK_R10_PGPFD.png"}`))
	}, time.Second)

	ts, err := c.LatestTimestamp(context.Background())
	if err != nil {
		t.Fatalf("LatestTimestamp returned error: %v", err)
	}
	want := time.Date(2023, 6, 1, 3, 40, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", ts, want)
	}
	if got := common.FormatURL(ts); got != "2023/06/01/034000" {
		t.Fatalf("FormatURL = %q, want 2023/06/01/034000", got)
	}
	if gotUserAgent != UserAgent {
		t.Fatalf("User-Agent = %q, want %q", gotUserAgent, UserAgent)
	}
}

func TestLatestTimestamp_ParseErrors(t *testing.T) {
	bodies := map[string]string{
		"not json":     `<html>oops</html>`,
		"missing date": `{"file":"x.png"}`,
		"bad format":   `{"date":"2023-06-01T03:40:00Z"}`,
		"wrong type":   `{"date":20230601}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}, time.Second)

			_, err := c.LatestTimestamp(context.Background())
			if !errors.Is(err, common.ErrParse) {
				t.Fatalf("error = %v, want ErrParse", err)
			}
		})
	}
}

func TestLatestTimestamp_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(Options{MetadataURL: url + "/latest.json", Timeout: time.Second})
	_, err := c.LatestTimestamp(context.Background())
	if !errors.Is(err, common.ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
}

func TestLatestTimestamp_NonOKStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}, time.Second)

	_, err := c.LatestTimestamp(context.Background())
	if !errors.Is(err, common.ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
}

func TestLatestTimestamp_Timeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}, 100*time.Millisecond)

	start := time.Now()
	_, err := c.LatestTimestamp(context.Background())
	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took %v, want well under 2s", elapsed)
	}
}

func TestFetchTile_BuildsAddress(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("tile-bytes"))
	}, time.Second)

	ts := time.Date(2023, 6, 1, 3, 40, 0, 0, time.UTC)
	spec := common.GridSpec{Level: 8, TileWidth: 550, TileHeight: 550}
	data, err := c.FetchTile(context.Background(), spec, ts, common.TileCoordinate{X: 5, Y: 2})
	if err != nil {
		t.Fatalf("FetchTile returned error: %v", err)
	}
	if string(data) != "tile-bytes" {
		t.Fatalf("data = %q", data)
	}
	if want := "/img/8d/550/2023/06/01/034000_5_2.png"; gotPath != want {
		t.Fatalf("path = %q, want %q", gotPath, want)
	}
}

func TestFetchTile_RejectsOutOfRangeCoordinate(t *testing.T) {
	c := NewClient(Options{TileBaseURL: "http://127.0.0.1:1"})
	_, err := c.FetchTile(context.Background(), common.DefaultGridSpec(), time.Now(), common.TileCoordinate{X: 4, Y: 0})
	if err == nil {
		t.Fatalf("FetchTile(4,0) on level 4 returned nil error")
	}
}

func TestFetchTile_RateLimited(t *testing.T) {
	handler := ratelimit.NewHandler(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	c := NewClient(Options{TileBaseURL: server.URL, Timeout: time.Second, RateLimit: handler})
	_, err := c.FetchTile(context.Background(), common.DefaultGridSpec(), time.Now(), common.TileCoordinate{})
	if !errors.Is(err, common.ErrNetwork) || !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrNetwork and ErrRateLimited", err)
	}
	if !handler.IsRateLimited(common.ProviderHimawari) {
		t.Fatalf("handler did not record the rate limit")
	}
}

func TestFetchTile_ParentCancellationIsNotATimeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := c.FetchTile(ctx, common.DefaultGridSpec(), time.Now(), common.TileCoordinate{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, common.ErrTimeout) {
		t.Fatalf("cancellation misreported as timeout: %v", err)
	}
}
