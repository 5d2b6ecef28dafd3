package ports

import (
	"context"

	"github.com/bnema/pogo-accounts/internal/domain"
)

type ProxySource interface {
	Next(ctx context.Context) (domain.Proxy, error)
}
