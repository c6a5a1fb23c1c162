package client

import (
	"context"
	"fmt"
	"time"

	"bjs/parser/internal/config"
	"bjs/parser/internal/domain"
	"bjs/parser/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// SearchClient pages through the product search API
type SearchClient interface {
	Search(ctx context.Context, skip int) (*domain.SearchPage, error)
}

type searchClient struct {
	rl            ratelimit.Limiter
	config        config.SearchConfig
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
}

func NewSearchClient(cfg config.SearchConfig, proxySupplier proxy.ProxySupplier) SearchClient {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(0).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using proxy: %s", proxyURL)
		}
	}

	return &searchClient{
		rl:            newPageLimiter(cfg.PageDelay),
		config:        cfg,
		httpClient:    client,
		proxySupplier: proxySupplier,
	}
}

// newPageLimiter spaces calls to Take at least delay seconds apart; the first call never waits
func newPageLimiter(delay int) ratelimit.Limiter {
	if delay <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(1, ratelimit.Per(time.Duration(delay)*time.Second), ratelimit.WithoutSlack)
}

func (c *searchClient) Search(ctx context.Context, skip int) (*domain.SearchPage, error) {
	c.rl.Take()

	var body searchResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(c.newSearchRequest(skip)).
		SetResult(&body).
		Post(c.config.Endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to query search API: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	page := &domain.SearchPage{
		Skip:             skip,
		RecordEnd:        body.PageInfo.RecordEnd,
		TotalRecordCount: body.TotalRecordCount,
		Items:            make([]domain.Item, 0, len(body.Records)),
	}
	for _, record := range body.Records {
		page.Items = append(page.Items, record.AllMeta.toItem(c.config.ClubID))
	}

	log.Debugf("Fetched records %d-%d of %d", skip, page.RecordEnd, page.TotalRecordCount)
	return page, nil
}

func (c *searchClient) newSearchRequest(skip int) searchRequest {
	return searchRequest{
		Skip:     skip,
		PageSize: c.config.PageSize,
		Fields:   c.config.Fields,
		Refinements: []refinement{
			{
				NavigationName: availabilityNavigation,
				Type:           "Value",
				Value:          "Club" + c.config.ClubID,
			},
		},
		Area:       c.config.Area,
		Collection: c.config.Collection,
		Sort: sortOrder{
			Field: "_relevance",
			Order: "Descending",
		},
		ExcludedNavigations: []string{availabilityNavigation},
		Biasing: biasing{
			Biases: []interface{}{},
		},
		Query: nil,
	}
}
