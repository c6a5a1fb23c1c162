package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"bjs/parser/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

const (
	menuLeafSelector     = "li.is-drilldown-submenu-item:not(.is-drilldown-submenu-parent):not(.js-drilldown-back) > a"
	productCellSelector  = "div.product"
	subcategorySelector  = "a.cat"
	nextPageSelector     = "a.next"
	pageSizeSelector     = "select[name='pagination'] option"
	categoryMarkerID     = "#cat"
	productAreaSelector  = "div.product-area"
	categoryGridSelector = "div.categories"
)

type catalogParser struct {
	baseURL *url.URL
}

func newCatalogParser(baseURL string) (*catalogParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &catalogParser{
		baseURL: base,
	}, nil
}

// ParseCategoryMenu returns the leaves of the drill-down menu, grouped by name in page order
func (p *catalogParser) ParseCategoryMenu(html string) ([]domain.CategoryLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	links := p.groupLinks(doc.Find(menuLeafSelector))
	log.Debugf("Parsed %d menu categories", len(links))
	return links, nil
}

// ParseCategoryPage classifies a rendered category page and extracts what the walk needs from it
func (p *catalogParser) ParseCategoryPage(html, pageURL string) (*domain.CategoryPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &domain.CategoryPage{
		URL: pageURL,
	}

	switch {
	case doc.Find(categoryMarkerID).Length() == 0:
		page.Kind = domain.PageKindLanding
	case doc.Find(productAreaSelector).Length() > 0:
		page.Kind = domain.PageKindProducts
		page.Products = p.extractProducts(doc)
		page.HasNext = doc.Find(nextPageSelector).Length() > 0
		page.PageSizeValue = largestPageSize(doc)
	case doc.Find(categoryGridSelector).Length() > 0:
		page.Kind = domain.PageKindSubcategories
		page.Subcategories = p.groupLinks(doc.Find(subcategorySelector))
	default:
		page.Kind = domain.PageKindUnrecognized
	}

	log.Debugf("Parsed %s page %s: %d products, %d subcategories",
		page.Kind, pageURL, len(page.Products), len(page.Subcategories))
	return page, nil
}

func (p *catalogParser) extractProducts(doc *goquery.Document) []domain.ProductLink {
	var products []domain.ProductLink
	doc.Find(productCellSelector).Each(func(i int, cell *goquery.Selection) {
		name := strings.TrimSpace(cell.Find("p.title").First().Text())
		href, exists := cell.Find("a").First().Attr("href")
		if name == "" || !exists {
			return
		}
		products = append(products, domain.ProductLink{
			Name: name,
			URL:  p.absolute(href),
		})
	})
	return products
}

func (p *catalogParser) groupLinks(anchors *goquery.Selection) []domain.CategoryLink {
	var links []domain.CategoryLink
	index := make(map[string]int)

	anchors.Each(func(i int, a *goquery.Selection) {
		href, exists := a.Attr("href")
		name := strings.TrimSpace(a.Text())
		if !exists || name == "" {
			return
		}

		if at, seen := index[name]; seen {
			links[at].URLs = append(links[at].URLs, p.absolute(href))
			return
		}
		index[name] = len(links)
		links = append(links, domain.CategoryLink{
			Name: name,
			URLs: []string{p.absolute(href)},
		})
	})
	return links
}

// largestPageSize finds the option whose label starts with the biggest number, e.g. "120 per page"
func largestPageSize(doc *goquery.Document) string {
	best, value := -1, ""
	doc.Find(pageSizeSelector).Each(func(i int, option *goquery.Selection) {
		fields := strings.Fields(option.Text())
		if len(fields) == 0 {
			return
		}
		size, err := strconv.Atoi(fields[0])
		if err != nil {
			return
		}
		if size > best {
			best = size
			value, _ = option.Attr("value")
		}
	})
	return value
}

func (p *catalogParser) absolute(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.baseURL.ResolveReference(ref).String()
}
