package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"

	"bjs/parser/internal/client"
	"bjs/parser/internal/domain"
	"bjs/parser/internal/state"

	log "github.com/sirupsen/logrus"
)

// viewAll links list the products of the enclosing category and add no level of their own
const viewAll = "View All"

// Walker collects products by walking the category tree in the browser
type Walker struct {
	browser client.Browser
	cache   state.ResumeCache
}

func NewWalker(browser client.Browser, cache state.ResumeCache) *Walker {
	return &Walker{
		browser: browser,
		cache:   cache,
	}
}

// frame is one category on the walk stack
type frame struct {
	path     domain.Path
	urls     []string
	alias    bool // View All link sharing its parent's path
	parent   *frame
	items    map[string]domain.Item
	expanded bool
}

func (f *frame) cacheable() bool {
	return len(f.path) > 0 && !f.alias
}

func (f *frame) collect(items map[string]domain.Item) {
	for _, item := range items {
		f.items[itemKey(item)] = item
	}
}

// Walk visits every category reachable from the menu, post-order. Completed subtrees
// are served from the resume cache without loading any page.
func (w *Walker) Walk(ctx context.Context) (*domain.Inventory, error) {
	if err := w.browser.SelectClub(ctx); err != nil {
		return nil, err
	}

	links, err := w.browser.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read category menu: %w", err)
	}
	log.Infof("🔄 Walking %d top-level categories", len(links))

	root := &frame{items: make(map[string]domain.Item), expanded: true}
	stack := w.push(nil, root, links)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]

		if top.expanded {
			stack = stack[:len(stack)-1]
			if err := w.finish(ctx, top); err != nil {
				return nil, err
			}
			continue
		}

		if top.cacheable() {
			done, err := w.cache.Completed(ctx, top.path)
			if err != nil {
				return nil, err
			}
			if done {
				stack = stack[:len(stack)-1]
				if err := w.reuse(ctx, top); err != nil {
					return nil, err
				}
				continue
			}
		}

		top.expanded = true
		children, err := w.expand(ctx, top)
		if err != nil {
			return nil, err
		}
		stack = w.push(stack, top, children)
	}

	return toInventory(root.items), nil
}

// push adds the children of parent so the first link is walked first
func (w *Walker) push(stack []*frame, parent *frame, links []domain.CategoryLink) []*frame {
	for i := len(links) - 1; i >= 0; i-- {
		link := links[i]
		child := &frame{
			path:   parent.path.Child(link.Name),
			urls:   link.URLs,
			parent: parent,
			items:  make(map[string]domain.Item),
		}
		if link.Name == viewAll {
			child.path = parent.path
			child.alias = true
		}
		stack = append(stack, child)
	}
	return stack
}

// expand loads every page of the frame, keeps its products and returns its subcategories
func (w *Walker) expand(ctx context.Context, f *frame) ([]domain.CategoryLink, error) {
	var children []domain.CategoryLink
	products := false

	for _, url := range f.urls {
		log.Infof("🔄 %s: %s", f.path, url)

		page, err := w.visit(ctx, url)
		if err != nil {
			return nil, err
		}

		switch page.Kind {
		case domain.PageKindProducts:
			items, err := w.collectProducts(ctx, f.path, page)
			if err != nil {
				return nil, err
			}
			f.collect(items)
			products = true
		case domain.PageKindSubcategories:
			children = append(children, page.Subcategories...)
		case domain.PageKindLanding:
			log.Debugf("Skipping landing page %s", url)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnrecognizedPage, url)
		}
	}

	if products && f.cacheable() {
		if err := w.cache.PutItems(ctx, f.path, maps.Clone(f.items)); err != nil {
			return nil, fmt.Errorf("failed to cache items of %s: %w", f.path, err)
		}
	}
	return children, nil
}

// visit loads a page, retrying once when it does not finish loading
func (w *Walker) visit(ctx context.Context, url string) (*domain.CategoryPage, error) {
	page, err := w.browser.Visit(ctx, url)
	if err == nil || !errors.Is(err, client.ErrPageNotLoaded) {
		return page, err
	}

	log.Warnf("Category page failed to load. Trying again... (%v)", err)
	return w.browser.Visit(ctx, url)
}

func (w *Walker) collectProducts(ctx context.Context, path domain.Path, page *domain.CategoryPage) (map[string]domain.Item, error) {
	items := make(map[string]domain.Item)
	for {
		for _, product := range page.Products {
			item := newWalkItem(path, product)
			items[itemKey(item)] = item
		}
		if !page.HasNext {
			return items, nil
		}

		next, err := w.browser.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		page = next
	}
}

// finish rolls a fully walked frame up into its cache entry and hands its items to the parent.
// Children entries are dropped only once the path is marked completed, so a run that stops
// in between either re-walks the path or finds its items already stored.
func (w *Walker) finish(ctx context.Context, f *frame) error {
	if f.cacheable() {
		if err := w.cache.PutItems(ctx, f.path, maps.Clone(f.items)); err != nil {
			return fmt.Errorf("failed to cache items of %s: %w", f.path, err)
		}
		if err := w.cache.MarkCompleted(ctx, f.path); err != nil {
			return fmt.Errorf("failed to mark %s completed: %w", f.path, err)
		}
		if err := w.cache.RollUp(ctx, f.path, maps.Clone(f.items)); err != nil {
			return fmt.Errorf("failed to roll up %s: %w", f.path, err)
		}
		log.Infof("✅ Completed %s (%d items)", f.path, len(f.items))
	}

	f.parent.collect(f.items)
	return nil
}

func (w *Walker) reuse(ctx context.Context, f *frame) error {
	items, ok, err := w.cache.Items(ctx, f.path)
	if err != nil {
		return err
	}
	log.Infof("✅ Skipping completed %s (%d cached items)", f.path, len(items))
	if ok {
		f.parent.collect(items)
	}
	return nil
}

func newWalkItem(path domain.Path, product domain.ProductLink) domain.Item {
	categories := [][]string{}
	if len(path) > 0 {
		categories = append(categories, append([]string(nil), path...))
	}
	return domain.Item{
		Name:       product.Name,
		Categories: categories,
		URL:        product.URL,
	}
}

// toInventory orders items by category path, then name
func toInventory(items map[string]domain.Item) *domain.Inventory {
	inv := domain.NewInventory()
	for _, item := range items {
		inv.Items = append(inv.Items, item)
	}
	sort.Slice(inv.Items, func(i, j int) bool {
		a, b := itemPath(inv.Items[i]), itemPath(inv.Items[j])
		if a != b {
			return a < b
		}
		return inv.Items[i].Name < inv.Items[j].Name
	})
	return inv
}

// itemKey identifies an item by its category path and name; equal names in one category collapse
func itemKey(item domain.Item) string {
	return itemPath(item) + " | " + item.Name
}

func itemPath(item domain.Item) string {
	if len(item.Categories) == 0 {
		return ""
	}
	return domain.Path(item.Categories[0]).String()
}
