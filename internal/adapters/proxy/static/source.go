package static

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

var ErrNoProxies = errors.New("no proxies configured")

type Order string

const (
	OrderRoundRobin Order = "round-robin"
	OrderRandom     Order = "random"
)

// Display selects how a proxy is labelled in logs and status output.
type Display string

const (
	DisplayIndex Display = "index"
	DisplayFull  Display = "full"
)

// Source hands out proxies from a fixed list.
type Source struct {
	proxies []domain.Proxy
	order   Order
	random  ports.Random

	mu   sync.Mutex
	next int
}

var _ ports.ProxySource = (*Source)(nil)

type Option func(*Source)

func WithOrder(order Order) Option {
	return func(s *Source) {
		if order != "" {
			s.order = order
		}
	}
}

func WithRandom(random ports.Random) Option {
	return func(s *Source) {
		if random != nil {
			s.random = random
		}
	}
}

func NewSource(urls []string, display Display, opts ...Option) (*Source, error) {
	proxies := make([]domain.Proxy, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", raw)
		}

		label := strconv.Itoa(len(proxies))
		switch display {
		case DisplayFull:
			label = raw
		case DisplayIndex, "":
		default:
			return nil, fmt.Errorf("unsupported proxy display %q", display)
		}
		proxies = append(proxies, domain.Proxy{Label: label, URL: raw})
	}
	if len(proxies) == 0 {
		return nil, ErrNoProxies
	}

	s := &Source{proxies: proxies, order: OrderRoundRobin, random: ports.SystemRandom{}}
	for _, opt := range opts {
		opt(s)
	}
	switch s.order {
	case OrderRoundRobin, OrderRandom:
	default:
		return nil, fmt.Errorf("unsupported proxy order %q", s.order)
	}

	return s, nil
}

func (s *Source) Next(ctx context.Context) (domain.Proxy, error) {
	if err := ctx.Err(); err != nil {
		return domain.Proxy{}, err
	}

	if s.order == OrderRandom {
		return s.proxies[s.random.IntN(len(s.proxies))], nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proxy := s.proxies[s.next]
	s.next = (s.next + 1) % len(s.proxies)
	return proxy, nil
}

func (s *Source) Len() int {
	return len(s.proxies)
}
