package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"bjs/parser/internal/client"
	"bjs/parser/internal/domain"
	"bjs/parser/internal/state"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeBrowser struct {
	menu     []domain.CategoryLink
	pages    map[string][]*domain.CategoryPage // first page followed by its next pages
	failures map[string]int                    // load failures before a URL succeeds
	visits   []string

	current []*domain.CategoryPage
	pos     int
}

func (b *fakeBrowser) SelectClub(context.Context) error { return nil }

func (b *fakeBrowser) Categories(context.Context) ([]domain.CategoryLink, error) {
	return b.menu, nil
}

func (b *fakeBrowser) Visit(_ context.Context, url string) (*domain.CategoryPage, error) {
	b.visits = append(b.visits, url)
	if b.failures[url] > 0 {
		b.failures[url]--
		return nil, fmt.Errorf("%w: %s", client.ErrPageNotLoaded, url)
	}
	seq, ok := b.pages[url]
	if !ok {
		return nil, fmt.Errorf("unexpected url %s", url)
	}
	b.current, b.pos = seq, 0
	return seq[0], nil
}

func (b *fakeBrowser) NextPage(context.Context) (*domain.CategoryPage, error) {
	b.pos++
	return b.current[b.pos], nil
}

func (b *fakeBrowser) Close() {}

func productPage(hasNext bool, names ...string) *domain.CategoryPage {
	page := &domain.CategoryPage{Kind: domain.PageKindProducts, HasNext: hasNext}
	for _, name := range names {
		page.Products = append(page.Products, domain.ProductLink{Name: name, URL: "/p/" + name})
	}
	return page
}

func subcategoryPage(links ...domain.CategoryLink) *domain.CategoryPage {
	return &domain.CategoryPage{Kind: domain.PageKindSubcategories, Subcategories: links}
}

func link(name string, urls ...string) domain.CategoryLink {
	return domain.CategoryLink{Name: name, URLs: urls}
}

// storeSite is Grocery (Snacks over two pages, plus a View All list), Electronics and a landing page
func storeSite() *fakeBrowser {
	return &fakeBrowser{
		menu: []domain.CategoryLink{
			link("Grocery", "/grocery"),
			link("Apple Shop", "/apple"),
			link("Electronics", "/tv"),
		},
		pages: map[string][]*domain.CategoryPage{
			"/grocery":     {subcategoryPage(link("Snacks", "/snacks"), link("View All", "/grocery-all"))},
			"/snacks":      {productPage(true, "Chips"), productPage(false, "Pretzels")},
			"/grocery-all": {productPage(false, "Bread")},
			"/apple":       {{Kind: domain.PageKindLanding}},
			"/tv":          {productPage(false, "TV")},
		},
		failures: map[string]int{},
	}
}

func newCache(t *testing.T, dir string) state.ResumeCache {
	t.Helper()
	cache, err := state.NewFileResumeCache(
		filepath.Join(dir, "items.json"),
		filepath.Join(dir, "completed.json"),
	)
	require.NoError(t, err)
	return cache
}

func walkItem(name string, path ...string) domain.Item {
	return domain.Item{Name: name, Categories: [][]string{path}, URL: "/p/" + name}
}

func TestWalkCollectsTree(t *testing.T) {
	browser := storeSite()
	cache := newCache(t, t.TempDir())
	ctx := context.Background()

	inv, err := NewWalker(browser, cache).Walk(ctx)
	require.NoError(t, err)

	want := []domain.Item{
		walkItem("TV", "Electronics"),
		walkItem("Bread", "Grocery"),
		walkItem("Chips", "Grocery", "Snacks"),
		walkItem("Pretzels", "Grocery", "Snacks"),
	}
	if diff := cmp.Diff(want, inv.Items); diff != "" {
		t.Errorf("walk result mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"/grocery", "/snacks", "/grocery-all", "/apple", "/tv"}, browser.visits)

	for _, path := range []domain.Path{{"Grocery"}, {"Grocery", "Snacks"}, {"Electronics"}, {"Apple Shop"}} {
		done, err := cache.Completed(ctx, path)
		require.NoError(t, err)
		require.True(t, done, path.String())
	}

	grocery, ok, err := cache.Items(ctx, domain.Path{"Grocery"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, grocery, 3)

	_, ok, err = cache.Items(ctx, domain.Path{"Grocery", "Snacks"})
	require.NoError(t, err)
	require.False(t, ok, "child entry should be rolled up into its parent")
}

func TestWalkRestartSkipsCompletedPaths(t *testing.T) {
	dir := t.TempDir()

	crashing := storeSite()
	crashing.failures["/tv"] = 2
	_, err := NewWalker(crashing, newCache(t, dir)).Walk(context.Background())
	require.ErrorIs(t, err, client.ErrPageNotLoaded)

	restarted := storeSite()
	inv, err := NewWalker(restarted, newCache(t, dir)).Walk(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"/tv"}, restarted.visits)
	require.Len(t, inv.Items, 4)
}

func TestWalkRetriesPageLoadOnce(t *testing.T) {
	browser := storeSite()
	browser.failures["/snacks"] = 1

	inv, err := NewWalker(browser, newCache(t, t.TempDir())).Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, inv.Items, 4)
	require.Equal(t, []string{"/grocery", "/snacks", "/snacks", "/grocery-all", "/apple", "/tv"}, browser.visits)
}

func TestWalkFailsAfterSecondLoadFailure(t *testing.T) {
	browser := storeSite()
	browser.failures["/snacks"] = 2

	_, err := NewWalker(browser, newCache(t, t.TempDir())).Walk(context.Background())
	require.ErrorIs(t, err, client.ErrPageNotLoaded)
	require.Equal(t, []string{"/grocery", "/snacks", "/snacks"}, browser.visits)
}

func TestWalkRejectsUnrecognizedPages(t *testing.T) {
	browser := storeSite()
	browser.pages["/tv"] = []*domain.CategoryPage{{Kind: domain.PageKindUnrecognized}}

	_, err := NewWalker(browser, newCache(t, t.TempDir())).Walk(context.Background())
	require.ErrorIs(t, err, ErrUnrecognizedPage)
}

func TestWalkNeverCachesEmptyPath(t *testing.T) {
	browser := &fakeBrowser{
		menu:     []domain.CategoryLink{link("View All", "/all")},
		pages:    map[string][]*domain.CategoryPage{"/all": {productPage(false, "Gift Card")}},
		failures: map[string]int{},
	}
	cache := newCache(t, t.TempDir())

	inv, err := NewWalker(browser, cache).Walk(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Item{{Name: "Gift Card", Categories: [][]string{}, URL: "/p/Gift Card"}}, inv.Items)

	done, err := cache.Completed(context.Background(), domain.Path{})
	require.NoError(t, err)
	require.False(t, done)
}

// failingCache stops the run when a given path is about to be marked completed
type failingCache struct {
	state.ResumeCache
	failOn domain.Path
}

func (c *failingCache) MarkCompleted(ctx context.Context, path domain.Path) error {
	if path.Equal(c.failOn) {
		return errors.New("killed")
	}
	return c.ResumeCache.MarkCompleted(ctx, path)
}

func TestWalkStoppedBeforeCompletionKeepsChildItems(t *testing.T) {
	dir := t.TempDir()

	crashing := storeSite()
	cache := &failingCache{ResumeCache: newCache(t, dir), failOn: domain.Path{"Grocery"}}
	_, err := NewWalker(crashing, cache).Walk(context.Background())
	require.Error(t, err)

	restarted := storeSite()
	inv, err := NewWalker(restarted, newCache(t, dir)).Walk(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"/grocery", "/grocery-all", "/apple", "/tv"}, restarted.visits)
	want := []domain.Item{
		walkItem("TV", "Electronics"),
		walkItem("Bread", "Grocery"),
		walkItem("Chips", "Grocery", "Snacks"),
		walkItem("Pretzels", "Grocery", "Snacks"),
	}
	if diff := cmp.Diff(want, inv.Items); diff != "" {
		t.Errorf("walk result mismatch (-want +got):\n%s", diff)
	}
}
