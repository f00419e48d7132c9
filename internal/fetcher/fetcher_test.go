package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeShard(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestDirSource_NumericOrder(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "results_page_10.json", `[10]`)
	writeShard(t, dir, "results_page_2.json", `[2]`)
	writeShard(t, dir, "results_page_1.json", `[1]`)
	writeShard(t, dir, "notes.txt", `ignored`)

	src := NewDirSource(dir, "")
	pages, err := src.Pages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 10}, pages)

	data, err := src.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, `[10]`, string(data))
}

func TestDirSource_RecursivePattern(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "a/results_page_1.json", `[]`)
	writeShard(t, dir, "b/c/results_page_3.json", `[]`)

	pages, err := NewDirSource(dir, "**/results_page_*.json").Pages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, pages)
}

func TestPageNumber(t *testing.T) {
	n, ok := PageNumber("results/results_page_117.json")
	assert.True(t, ok)
	assert.Equal(t, 117, n)

	_, ok = PageNumber("results_page_x.json")
	assert.False(t, ok)
}

// fakeSource serves canned shards; pages listed in fail error and pages in
// hang block until their context ends.
type fakeSource struct {
	pages []int
	fail  map[int]bool
	hang  map[int]bool
}

func (f *fakeSource) Pages(context.Context) ([]int, error) { return f.pages, nil }

func (f *fakeSource) Fetch(ctx context.Context, page int) ([]byte, error) {
	switch {
	case f.fail[page]:
		return nil, errors.New("unreachable")
	case f.hang[page]:
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte(fmt.Sprintf(`[%d]`, page)), nil
}

func TestCollect_FailuresArePerShard(t *testing.T) {
	src := &fakeSource{
		pages: []int{1, 2, 3, 4},
		fail:  map[int]bool{2: true},
		hang:  map[int]bool{4: true},
	}

	shards, err := Collect(context.Background(), src, Options{ShardTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, shards, 4)

	for i, s := range shards {
		assert.Equal(t, i+1, s.Page, "page order is kept")
	}
	assert.Equal(t, `[1]`, string(shards[0].Data))
	assert.Error(t, shards[1].Err)
	assert.Nil(t, shards[1].Data)
	assert.NoError(t, shards[2].Err)
	assert.ErrorIs(t, shards[3].Err, context.DeadlineExceeded)
}

func TestCollect_EmptyListing(t *testing.T) {
	_, err := Collect(context.Background(), &fakeSource{}, Options{})
	assert.ErrorIs(t, err, ErrNoShards)
}

func TestCollect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, &fakeSource{pages: []int{1}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/results/results_page_2.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"title":"x"}]`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/results/", 3, 0)
	defer src.client.CloseIdleConnections()

	pages, err := src.Pages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pages)

	shards, err := Collect(context.Background(), src, Options{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"x"}]`, string(shards[0].Data))
	assert.ErrorContains(t, shards[1].Err, "HTTP 404")
	assert.NoError(t, shards[2].Err)
}

func TestHTTPSource_RateLimitHonorsContext(t *testing.T) {
	src := NewHTTPSource("http://127.0.0.1:1", 1, 0.001)
	// Burst of one: the first Wait passes, the second has to wait ~1000s.
	require.NoError(t, src.limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := src.Fetch(ctx, 1)
	assert.ErrorContains(t, err, "rate limit")
}
