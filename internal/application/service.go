package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
)

// Service manages the stored account roster: password references, status
// queries and loading the roster into a Scheduler.
type Service struct {
	repo  ports.AccountRepository
	store ports.SecretStore
}

func NewService(repo ports.AccountRepository, store ports.SecretStore) *Service {
	return &Service{
		repo:  repo,
		store: store,
	}
}

// AddAccount registers a new identity without a password. Use SetPassword
// to attach one.
func (s *Service) AddAccount(ctx context.Context, username string, service domain.AuthService) (domain.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Account{}, errors.New("account username is required")
	}

	_, err := s.repo.GetByID(ctx, domain.AccountID(username))
	switch {
	case err == nil:
		return domain.Account{}, fmt.Errorf("add account %s: %w", username, domain.ErrAccountExists)
	case !errors.Is(err, domain.ErrAccountNotFound):
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}

	account := *domain.NewAccount(username, "", service)
	if err := s.repo.Save(ctx, account); err != nil {
		return domain.Account{}, fmt.Errorf("save account: %w", err)
	}
	return account, nil
}

// SaveSet creates or replaces a named account set. Every member must already
// be stored.
func (s *Service) SaveSet(ctx context.Context, set domain.AccountSet) error {
	for _, member := range set.Members {
		if _, err := s.repo.GetByID(ctx, member); err != nil {
			return fmt.Errorf("set %s member %s: %w", set.Name, member, err)
		}
	}
	if err := s.repo.SaveSet(ctx, set); err != nil {
		return fmt.Errorf("save account set: %w", err)
	}
	return nil
}

// SetPassword stores the password under secretKey and points the account at
// it. The previous reference is deleted once the account is saved; on any
// failure the store and the account are rolled back.
func (s *Service) SetPassword(ctx context.Context, id domain.AccountID, secretKey, password string) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}
	original := account
	previousRef := account.PasswordRef

	if err := s.store.Put(ctx, secretKey, password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	account.PasswordRef = secretKey
	account.Password = ""
	if err := s.repo.Save(ctx, account); err != nil {
		if rollbackErr := s.store.Delete(ctx, secretKey); rollbackErr != nil {
			return fmt.Errorf("save account password and rollback stored secret: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("save account password: %w", err)
	}

	if previousRef == "" || previousRef == secretKey {
		return nil
	}
	if err := s.store.Delete(ctx, previousRef); err != nil {
		var rollbackErr error
		if restoreErr := s.repo.Save(ctx, original); restoreErr != nil {
			rollbackErr = errors.Join(rollbackErr, restoreErr)
		}
		if deleteErr := s.store.Delete(ctx, secretKey); deleteErr != nil {
			rollbackErr = errors.Join(rollbackErr, deleteErr)
		}
		if rollbackErr != nil {
			return fmt.Errorf("delete previous password and rollback: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("delete previous password: %w", err)
	}

	return nil
}

func (s *Service) RemovePassword(ctx context.Context, id domain.AccountID) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}
	ref := account.PasswordRef
	if ref == "" {
		return nil
	}

	account.PasswordRef = ""
	if err := s.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("save account password: %w", err)
	}

	if err := s.store.Delete(ctx, ref); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		account.PasswordRef = ref
		if restoreErr := s.repo.Save(ctx, account); restoreErr != nil {
			return fmt.Errorf("delete password and restore ref: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete password: %w", err)
	}

	return nil
}

// LoadScheduler registers every stored set with scheduler. Accounts that no
// set claims are grouped into the default set. It returns the loaded
// accounts; the scheduler owns them from here on.
func (s *Service) LoadScheduler(ctx context.Context, scheduler *Scheduler) ([]*domain.Account, error) {
	accounts, sets, err := s.roster(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[domain.AccountID]*domain.Account, len(accounts))
	loaded := make([]*domain.Account, 0, len(accounts))
	for i := range accounts {
		account := accounts[i]
		if account.UsedPokestops == nil {
			account.UsedPokestops = map[string]time.Time{}
		}
		byID[account.ID()] = &account
		loaded = append(loaded, &account)
	}

	for _, set := range sets {
		members := make([]*domain.Account, 0, len(set.Members))
		for _, id := range set.Members {
			account, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("set %s: %w: %s", set.Name, domain.ErrAccountNotFound, id)
			}
			members = append(members, account)
		}
		if err := scheduler.CreateSet(set.Name, members, WithSetMaxSpeed(set.MaxSpeedKmph)); err != nil {
			return nil, err
		}
	}

	return loaded, nil
}

func (s *Service) GetStatus(ctx context.Context, id domain.AccountID) (Status, error) {
	statuses, err := s.GetStatusAll(ctx)
	if err != nil {
		return Status{}, err
	}
	for _, status := range statuses {
		if status.Account.ID() == id {
			return status, nil
		}
	}
	return Status{}, fmt.Errorf("get account by id: %w", domain.ErrAccountNotFound)
}

func (s *Service) GetStatusAll(ctx context.Context) ([]Status, error) {
	accounts, sets, err := s.roster(ctx)
	if err != nil {
		return nil, err
	}

	owners := make(map[domain.AccountID]string)
	for _, set := range sets {
		for _, member := range set.Members {
			owners[member] = set.Name
		}
	}

	statuses := make([]Status, 0, len(accounts))
	for _, account := range accounts {
		statuses = append(statuses, Status{
			Account:      account,
			Set:          owners[account.ID()],
			Quarantined:  account.CaptchaFlagged,
			HasPassword:  account.Password != "" || account.PasswordRef != "",
			LastScanned:  account.LastScannedAt,
			HourSpinRate: account.HourSpinRate,
		})
	}

	return statuses, nil
}

// roster returns the stored accounts and their sets, with unassigned
// accounts collected into DefaultSetName.
func (s *Service) roster(ctx context.Context) ([]domain.Account, []domain.AccountSet, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list accounts: %w", err)
	}
	sets, err := s.repo.ListSets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list account sets: %w", err)
	}

	assigned := make(map[domain.AccountID]struct{})
	for _, set := range sets {
		for _, member := range set.Members {
			assigned[member] = struct{}{}
		}
	}

	var unassigned []domain.AccountID
	for _, account := range accounts {
		if _, ok := assigned[account.ID()]; !ok {
			unassigned = append(unassigned, account.ID())
		}
	}
	if len(unassigned) > 0 {
		merged := false
		for i := range sets {
			if sets[i].Name == DefaultSetName {
				sets[i].Members = append(sets[i].Members, unassigned...)
				merged = true
			}
		}
		if !merged {
			sets = append(sets, domain.AccountSet{Name: DefaultSetName, Members: unassigned})
		}
	}

	if err := domain.ValidateSets(sets); err != nil {
		return nil, nil, fmt.Errorf("validate account sets: %w", err)
	}

	return accounts, sets, nil
}
