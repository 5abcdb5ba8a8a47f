package crawl

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-catalog/extract"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// scriptedPager serves pages[i] for page i; errAt makes that page fail.
func scriptedPager(pages [][]string, errAt int, maxPages int, fetched *int) Pager {
	return Pager{
		MaxPages: maxPages,
		Fetch: func(_ context.Context, n int) (*parser.Payload, error) {
			*fetched++
			if n == errAt {
				return nil, errors.New("boom")
			}
			return &parser.Payload{Raw: parser.Raw{URL: strconv.Itoa(n)}}, nil
		},
	}
}

func scriptedExtract(pages [][]string, total *int) func(*parser.Payload) extract.Page[string] {
	return func(p *parser.Payload) extract.Page[string] {
		n, _ := strconv.Atoi(p.URL)
		page := extract.Page[string]{Total: total}
		if n < len(pages) {
			page.Items = pages[n]
		}
		return page
	}
}

func identity(s string) string { return s }

func TestCollect(t *testing.T) {
	two, six := 2, 6
	repeated := [][]string{{"a", "b"}, {"a", "b"}, {"a", "b"}, {"a", "b"}, {"a", "b"}, {"a", "b"}}
	tests := []struct {
		name       string
		pages      [][]string
		total      *int
		errAt      int
		maxPages   int
		maxItems   int
		wantItems  []string
		wantReason models.StopReason
		wantPages  int
		wantDups   int
	}{
		{
			name:       "exhausted on empty page",
			pages:      [][]string{{"a", "b"}, {"c"}},
			errAt:      -1,
			maxPages:   10,
			wantItems:  []string{"a", "b", "c"},
			wantReason: models.StopExhausted,
			wantPages:  3,
		},
		{
			name:       "duplicate page does not stop",
			pages:      [][]string{{"a", "b"}, {"a", "b"}, {"c"}},
			errAt:      -1,
			maxPages:   10,
			wantItems:  []string{"a", "b", "c"},
			wantReason: models.StopExhausted,
			wantPages:  4,
			wantDups:   2,
		},
		{
			name:       "page cap",
			pages:      [][]string{{"a"}, {"b"}, {"c"}, {"d"}},
			errAt:      -1,
			maxPages:   2,
			wantItems:  []string{"a", "b"},
			wantReason: models.StopPageCap,
			wantPages:  2,
		},
		{
			name:       "item cap",
			pages:      [][]string{{"a", "b", "c"}, {"d", "e", "f"}},
			errAt:      -1,
			maxPages:   10,
			maxItems:   4,
			wantItems:  []string{"a", "b", "c", "d"},
			wantReason: models.StopItemCap,
			wantPages:  2,
		},
		{
			name:       "item cap equal to available items is not truncation",
			pages:      [][]string{{"a", "b", "c"}},
			errAt:      -1,
			maxPages:   10,
			maxItems:   3,
			wantItems:  []string{"a", "b", "c"},
			wantReason: models.StopExhausted,
			wantPages:  2,
		},
		{
			name:       "item cap reached at page boundary with more items behind it",
			pages:      [][]string{{"a", "b"}, {"c"}},
			errAt:      -1,
			maxPages:   10,
			maxItems:   2,
			wantItems:  []string{"a", "b"},
			wantReason: models.StopItemCap,
			wantPages:  2,
		},
		{
			name:       "item cap filled on the last allowed page",
			pages:      [][]string{{"a", "b"}, {"c"}},
			errAt:      -1,
			maxPages:   1,
			maxItems:   2,
			wantItems:  []string{"a", "b"},
			wantReason: models.StopItemCap,
			wantPages:  1,
		},
		{
			name:       "repeating pages with a reported total run to the page cap",
			pages:      repeated,
			total:      &six,
			errAt:      -1,
			maxPages:   5,
			wantItems:  []string{"a", "b"},
			wantReason: models.StopPageCap,
			wantPages:  5,
			wantDups:   8,
		},
		{
			name:       "fetch error keeps earlier items",
			pages:      [][]string{{"a", "b"}, {"c"}},
			errAt:      1,
			maxPages:   10,
			wantItems:  []string{"a", "b"},
			wantReason: models.StopFetchError,
			wantPages:  1,
		},
		{
			name:       "reported total reached",
			pages:      [][]string{{"a", "b"}, {"c"}},
			total:      &two,
			errAt:      -1,
			maxPages:   10,
			wantItems:  []string{"a", "b"},
			wantReason: models.StopExhausted,
			wantPages:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetched := 0
			got := Collect(context.Background(),
				scriptedPager(tt.pages, tt.errAt, tt.maxPages, &fetched),
				scriptedExtract(tt.pages, tt.total),
				identity,
				tt.maxItems,
			)
			assert.Equal(t, tt.wantItems, got.Items)
			assert.Equal(t, tt.wantReason, got.State.StopReason)
			assert.Equal(t, tt.wantPages, got.State.PagesFetched)
			assert.Equal(t, tt.wantDups, got.State.DuplicatesDropped)
			if tt.wantReason == models.StopFetchError {
				assert.Equal(t, "boom", got.State.Error)
			}
		})
	}
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetched := 0
	got := Collect(ctx, scriptedPager([][]string{{"a"}}, -1, 5, &fetched), scriptedExtract([][]string{{"a"}}, nil), identity, 0)
	assert.Empty(t, got.Items)
	assert.Equal(t, models.StopCanceled, got.State.StopReason)
	assert.Zero(t, fetched)
}

func TestCollectCountsSkippedItems(t *testing.T) {
	fetched := 0
	pager := scriptedPager(nil, -1, 3, &fetched)
	extractPage := func(p *parser.Payload) extract.Page[string] {
		if p.URL != "0" {
			return extract.Page[string]{}
		}
		return extract.Page[string]{
			Items:    []string{"a"},
			Skipped:  []error{extract.ErrMissingRating},
			Warnings: []error{extract.ErrUnparsedTime},
		}
	}

	got := Collect(context.Background(), pager, extractPage, identity, 0)
	assert.Equal(t, []string{"a"}, got.Items)
	assert.Equal(t, 1, got.State.ItemsSkipped)
	assert.Len(t, got.Issues, 2)
}

func TestPagesIsLazy(t *testing.T) {
	fetched := 0
	pager := scriptedPager([][]string{{"a"}, {"b"}, {"c"}}, -1, 3, &fetched)
	for page, err := range pager.Pages(context.Background()) {
		require.NoError(t, err)
		require.NotNil(t, page)
		break
	}
	assert.Equal(t, 1, fetched)
}

func TestQueueDeduplicates(t *testing.T) {
	q := newQueue(nil)
	assert.True(t, q.push(productTarget("P1")))
	assert.False(t, q.push(models.Target{Kind: models.KindProduct, Locator: "elsewhere", ProductID: "P1"}))
	assert.True(t, q.push(productTarget("P2")))

	queued, dups := q.counts()
	assert.Equal(t, 2, queued)
	assert.Equal(t, 1, dups)

	first, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "P1", first.ProductID)
	assert.Equal(t, productURL("P1"), first.Locator)
}

func TestQueueClosesWhenIdle(t *testing.T) {
	q := newQueue(nil)
	q.push(productTarget("P1"))

	_, ok := q.pop()
	require.True(t, ok)

	// An in-flight target may still push more work, so pop must not close yet.
	done := make(chan bool)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()
	q.push(productTarget("P2"))
	assert.True(t, <-done)

	q.done()
	q.done()
	_, ok = q.pop()
	assert.False(t, ok)
	assert.False(t, q.push(productTarget("P3")))
}

func TestQueueDrain(t *testing.T) {
	q := newQueue(nil)
	q.push(productTarget("P1"))
	q.push(productTarget("P2"))
	q.close()

	_, ok := q.pop()
	assert.False(t, ok)
	assert.Len(t, q.drain(), 2)
	assert.Empty(t, q.drain())
}
