package ports

import (
	"context"

	"github.com/bnema/pogo-accounts/internal/domain"
)

// AccountRepository loads configured accounts and their set partitioning and
// persists progression between runs.
type AccountRepository interface {
	GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	ListSets(ctx context.Context) ([]domain.AccountSet, error)
	Save(ctx context.Context, account domain.Account) error
	SaveSet(ctx context.Context, set domain.AccountSet) error
}
