package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bjs/parser/internal/config"
	"bjs/parser/internal/domain"
	"bjs/parser/internal/proxy"

	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

const (
	pageMarkerSelector  = ".below-header"
	inClubSelector      = ".counts .club"
	findAClubXPath      = "//div[contains(@class, 'title-bar')]//span[contains(@class, 'club-name')]/parent::a"
	findAClubPageXPath  = "//div[contains(@class, 'find-a-club')]"
	clubStateSelector   = "form#locator_dropdown select[name='clubState']"
	clubTownSelector    = "form#locator_dropdown select[name='clubTown']"
	shopClubButtonQuery = "#shopClubBtn"
	paginationSelector  = "select[name='pagination']"
)

// selectOptionJS picks the option matching a value or a visible label and fires change
const selectOptionJS = `(function(selector, wanted) {
	const select = document.querySelector(selector);
	if (!select) { return false; }
	const option = Array.from(select.options).find(o => o.value === wanted || o.text.trim() === wanted);
	if (!option) { return false; }
	select.value = option.value;
	select.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})(%q, %q)`

// Browser drives the store website for the category walk
type Browser interface {
	SelectClub(ctx context.Context) error
	Categories(ctx context.Context) ([]domain.CategoryLink, error)
	Visit(ctx context.Context, url string) (*domain.CategoryPage, error)
	NextPage(ctx context.Context) (*domain.CategoryPage, error)
	Close()
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	config      config.BrowserConfig
	parser      *catalogParser
	rl          ratelimit.Limiter
	loadTimeout time.Duration
	settleDelay time.Duration
}

// NewBrowser starts a Chrome instance
func NewBrowser(ctx context.Context, cfg config.BrowserConfig, proxySupplier proxy.ProxySupplier) (Browser, error) {
	parser, err := newCatalogParser(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			opts = append(opts, chromedp.ProxyServer(proxyURL))
			log.Infof("🔗 Using proxy: %s", proxyURL)
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser; later runs may use derived timeouts safely
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Info("✅ Browser started")

	return &chromeBrowser{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		config:      cfg,
		parser:      parser,
		rl:          newPageLimiter(cfg.PageDelay),
		loadTimeout: time.Duration(cfg.LoadTimeout) * time.Second,
		settleDelay: time.Duration(cfg.SettleDelay) * time.Second,
	}, nil
}

// SelectClub sets the configured club as the shopping club so listings reflect its stock
func (b *chromeBrowser) SelectClub(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Infof("🔄 Selecting club %s, %s", b.config.ClubTown, b.config.ClubState)

	if err := b.navigate(b.config.BaseURL); err != nil {
		return err
	}
	if err := b.wait(findAClubXPath, chromedp.BySearch); err != nil {
		return fmt.Errorf("%w: find a club link", ErrElementMissing)
	}
	if err := b.run(chromedp.Click(findAClubXPath, chromedp.BySearch)); err != nil {
		return fmt.Errorf("failed to open find a club: %w", err)
	}
	if err := b.wait(findAClubPageXPath, chromedp.BySearch); err != nil {
		return fmt.Errorf("%w: find a club page", ErrPageNotLoaded)
	}

	if err := b.selectOption(clubStateSelector, b.config.ClubState); err != nil {
		return err
	}
	if err := b.run(chromedp.Sleep(b.settleDelay)); err != nil {
		return err
	}
	if err := b.selectOption(clubTownSelector, b.config.ClubTown); err != nil {
		return err
	}
	if err := b.wait(shopClubButtonQuery, chromedp.ByQuery); err != nil {
		return fmt.Errorf("%w: shop this club button", ErrPageNotLoaded)
	}
	if err := b.run(
		chromedp.Click(shopClubButtonQuery, chromedp.ByQuery),
		chromedp.Sleep(b.settleDelay),
	); err != nil {
		return fmt.Errorf("failed to set club: %w", err)
	}

	var selected string
	if err := b.run(chromedp.Text(findAClubXPath, &selected, chromedp.BySearch)); err != nil {
		return fmt.Errorf("failed to read selected club: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(selected), b.config.ClubName) {
		return fmt.Errorf("%w: got %q, want %q", ErrClubNotSelected, selected, b.config.ClubName)
	}

	log.Infof("✅ Club set to %s", selected)
	return nil
}

func (b *chromeBrowser) Categories(ctx context.Context) ([]domain.CategoryLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	html, err := b.outerHTML()
	if err != nil {
		return nil, err
	}
	return b.parser.ParseCategoryMenu(html)
}

// Visit loads a category page. Product lists are switched to the largest page size and
// filtered to items stocked in the club before they are parsed.
func (b *chromeBrowser) Visit(ctx context.Context, url string) (*domain.CategoryPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Debugf("🔄 Visiting %s", url)

	if err := b.navigate(url); err != nil {
		return nil, err
	}
	if err := b.wait(pageMarkerSelector, chromedp.ByQuery); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotLoaded, url)
	}

	page, err := b.parsePage(url)
	if err != nil || page.Kind != domain.PageKindProducts {
		return page, err
	}

	if page.PageSizeValue == "" {
		return nil, fmt.Errorf("%w: page size options on %s", ErrElementMissing, url)
	}
	if err := b.selectOption(paginationSelector, page.PageSizeValue); err != nil {
		return nil, err
	}
	if err := b.run(chromedp.Sleep(b.settleDelay)); err != nil {
		return nil, err
	}

	if err := b.wait(inClubSelector, chromedp.ByQuery); err != nil {
		return nil, fmt.Errorf("%w: in club filter on %s", ErrElementMissing, url)
	}
	if err := b.run(
		chromedp.Click(inClubSelector, chromedp.ByQuery),
		chromedp.Sleep(b.settleDelay),
	); err != nil {
		return nil, fmt.Errorf("failed to apply in club filter: %w", err)
	}

	return b.parsePage(url)
}

func (b *chromeBrowser) NextPage(ctx context.Context) (*domain.CategoryPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.rl.Take()

	if err := b.run(chromedp.Click(nextPageSelector, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to click next page: %w", err)
	}
	if err := b.wait(pageMarkerSelector, chromedp.ByQuery); err != nil {
		return nil, fmt.Errorf("%w: next page", ErrPageNotLoaded)
	}

	var location string
	if err := b.run(chromedp.Location(&location)); err != nil {
		return nil, fmt.Errorf("failed to read location: %w", err)
	}
	return b.parsePage(location)
}

func (b *chromeBrowser) Close() {
	b.cancel()
	b.allocCancel()
	log.Info("🛑 Browser closed")
}

func (b *chromeBrowser) navigate(url string) error {
	b.rl.Take()

	ctx, cancel := context.WithTimeout(b.ctx, b.loadTimeout+b.settleDelay)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPageNotLoaded, url, err)
	}
	return nil
}

// wait blocks until the element is visible or the load timeout expires
func (b *chromeBrowser) wait(selector string, by chromedp.QueryOption) error {
	ctx, cancel := context.WithTimeout(b.ctx, b.loadTimeout)
	defer cancel()

	return chromedp.Run(ctx, chromedp.WaitVisible(selector, by))
}

func (b *chromeBrowser) run(actions ...chromedp.Action) error {
	return chromedp.Run(b.ctx, actions...)
}

func (b *chromeBrowser) selectOption(selector, wanted string) error {
	var ok bool
	if err := b.run(chromedp.Evaluate(fmt.Sprintf(selectOptionJS, selector, wanted), &ok)); err != nil {
		return fmt.Errorf("failed to select %q in %s: %w", wanted, selector, err)
	}
	if !ok {
		return fmt.Errorf("%w: option %q in %s", ErrElementMissing, wanted, selector)
	}
	return nil
}

func (b *chromeBrowser) outerHTML() (string, error) {
	var html string
	if err := b.run(chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

func (b *chromeBrowser) parsePage(url string) (*domain.CategoryPage, error) {
	html, err := b.outerHTML()
	if err != nil {
		return nil, err
	}
	return b.parser.ParseCategoryPage(html, url)
}
