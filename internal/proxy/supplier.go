package proxy

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

const probeTimeout = 5 * time.Second

// ProxySupplier hands out working proxies in round-robin order
type ProxySupplier interface {
	Get() string
	Len() int
}

type proxySupplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewProxySupplier probes every proxy against testURL, one at a time, and keeps the ones that answer.
// An empty list yields a supplier that always returns "" (direct connection).
func NewProxySupplier(ctx context.Context, proxies []string, testURL string) (ProxySupplier, error) {
	if len(proxies) == 0 {
		return &proxySupplier{proxies: []string{}}, nil
	}

	log.Infof("🔄 Testing %d proxies against %s", len(proxies), testURL)

	working := make([]string, 0, len(proxies))
	for i, proxyURL := range proxies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log.Debugf("🔄 Testing proxy %d/%d: %s", i+1, len(proxies), proxyURL)

		if isProxyValid(ctx, proxyURL, testURL) {
			working = append(working, proxyURL)
			log.Infof("✅ Proxy %s is working", proxyURL)
		} else {
			log.Infof("❌ Proxy %s is not working, skipping", proxyURL)
		}
	}

	log.Infof("✅ ProxySupplier initialized with %d working proxies out of %d tested", len(working), len(proxies))

	return &proxySupplier{
		proxies: working,
	}, nil
}

// Get returns the next proxy URL, or "" when none are available
func (p *proxySupplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxy := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)

	return proxy
}

func (p *proxySupplier) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.proxies)
}

func isProxyValid(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(probeTimeout).
		SetRetryCount(0).
		SetProxy(proxyURL).
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})

	resp, err := client.R().
		SetContext(ctx).
		Get(testURL)
	if err != nil {
		log.Debugf("Proxy test failed for %s: %v", proxyURL, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Proxy test failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}

	return true
}
