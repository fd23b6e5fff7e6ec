package tiles

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"fieldsync/internal/app/client/store"
)

const (
	testLat = 55.7558
	testLon = 37.6173
)

func TestProjection(t *testing.T) {
	tests := []struct {
		name  string
		lat   float64
		lon   float64
		z     int
		wantX int
		wantY int
	}{
		{name: "origin z1", lat: 0.0001, lon: 0.0001, z: 1, wantX: 1, wantY: 0},
		{name: "moscow z14", lat: testLat, lon: testLon, z: 14, wantX: 9904, wantY: 5121},
		{name: "clamped east", lat: 0, lon: 180, z: 2, wantX: 3, wantY: 2},
		{name: "clamped north", lat: 89.9, lon: -180, z: 3, wantX: 0, wantY: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantX, LonToX(tt.lon, tt.z))
			assert.Equal(t, tt.wantY, LatToY(tt.lat, tt.z))
		})
	}
}

func TestAreaTiles(t *testing.T) {
	coords := AreaTiles(testLat, testLon, 2, []int{14})
	assert.Len(t, coords, 16)

	for _, c := range coords {
		assert.Equal(t, 14, c.Z)
		assert.InDelta(t, 9904, c.X, 3)
		assert.InDelta(t, 5121, c.Y, 3)
	}

	both := AreaTiles(testLat, testLon, 2, []int{14, 15})
	assert.Len(t, both, 16+42)
}

func TestAreaTiles_Edges(t *testing.T) {
	const z = 14
	last := (1 << z) - 1

	tests := []struct {
		name     string
		lat, lon float64
		maxCount int
		wantX    []int
	}{
		{name: "north pole", lat: 90, lon: 0, maxCount: 400},
		{name: "south pole", lat: -90, lon: 10, maxCount: 400},
		{name: "antimeridian east", lat: 0, lon: 179.99, maxCount: 64, wantX: []int{0, last}},
		{name: "antimeridian west", lat: 0, lon: -179.99, maxCount: 64, wantX: []int{0, last}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coords := AreaTiles(tt.lat, tt.lon, 2, []int{z})
			require.NotEmpty(t, coords)
			assert.LessOrEqual(t, len(coords), tt.maxCount)

			xs := map[int]bool{}
			for _, c := range coords {
				assert.GreaterOrEqual(t, c.X, 0)
				assert.LessOrEqual(t, c.X, last)
				xs[c.X] = true
			}
			for _, x := range tt.wantX {
				assert.True(t, xs[x], "столбец %d", x)
			}
		})
	}
}

type tileServer struct {
	*httptest.Server
	hits atomic.Int64
}

func newTileServer(t *testing.T, fail func(path string) bool) *tileServer {
	t.Helper()

	ts := &tileServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		if fail != nil && fail(r.URL.Path) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png:" + r.URL.Path))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestPrefetcher(url string, s Store, maxTiles int) *Prefetcher {
	return NewPrefetcher(Config{
		URL:           url + "/{z}/{x}/{y}.png",
		ZoomLevels:    []int{14},
		RadiusKM:      2,
		MaxTiles:      maxTiles,
		RatePerSecond: 1000,
		Concurrency:   4,
	}, s, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPrefetcher_DownloadsAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	srv := newTileServer(t, nil)
	s := store.NewMemoryStore()
	p := newTestPrefetcher(srv.URL, s, 0)

	res, err := p.DownloadAreaTiles(ctx, testLat, testLon)
	require.NoError(t, err)
	assert.Equal(t, Result{Total: 16, Downloaded: 16}, res)
	assert.EqualValues(t, 16, srv.hits.Load())

	ok, err := s.HasTile(ctx, "14/9904/5121")
	require.NoError(t, err)
	assert.True(t, ok)

	// повторный запрос той же области не ходит в сеть
	res, err = p.DownloadAreaTiles(ctx, testLat, testLon)
	require.NoError(t, err)
	assert.Equal(t, Result{Total: 16, Cached: 16}, res)
	assert.EqualValues(t, 16, srv.hits.Load())
}

func TestPrefetcher_FailuresAreCounted(t *testing.T) {
	ctx := context.Background()
	srv := newTileServer(t, func(path string) bool {
		return strings.HasPrefix(path, "/14/9904/")
	})
	s := store.NewMemoryStore()
	p := newTestPrefetcher(srv.URL, s, 0)

	res, err := p.DownloadAreaTiles(ctx, testLat, testLon)
	require.NoError(t, err)
	assert.Equal(t, 16, res.Total)
	assert.Positive(t, res.Failed)
	assert.Equal(t, 16, res.Failed+res.Downloaded)

	n, err := s.CountTiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Downloaded, n)
}

func TestPrefetcher_EvictsBeyondLimit(t *testing.T) {
	ctx := context.Background()
	srv := newTileServer(t, nil)
	s := store.NewMemoryStore()
	p := newTestPrefetcher(srv.URL, s, 5)

	res, err := p.DownloadAreaTiles(ctx, testLat, testLon)
	require.NoError(t, err)
	assert.Equal(t, 16, res.Downloaded)
	assert.Equal(t, 11, res.Evicted)

	n, err := s.CountTiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPrefetcher_InvalidCoordinates(t *testing.T) {
	p := newTestPrefetcher("http://127.0.0.1:1", store.NewMemoryStore(), 0)

	_, err := p.DownloadAreaTiles(context.Background(), 91, 0)
	assert.Error(t, err)
}
