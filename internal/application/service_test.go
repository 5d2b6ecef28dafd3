package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	tomlrepo "github.com/bnema/pogo-accounts/internal/adapters/repo/toml"
	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports/mocks"
)

func TestServiceSetPasswordSuccess(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewService(repo, store)

	account := domain.Account{Username: "trainer1", AuthService: domain.AuthServicePTC}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).Return(account, nil)
	store.EXPECT().Put(mockAnyContext(), "pogo/trainer1", "hunter2").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{
		Username:    "trainer1",
		AuthService: domain.AuthServicePTC,
		PasswordRef: "pogo/trainer1",
	}).Return(nil)

	err := service.SetPassword(context.Background(), "trainer1", "pogo/trainer1", "hunter2")
	require.NoError(t, err)
}

func TestServiceSetPasswordClearsInlinePassword(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewService(repo, store)

	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).
		Return(domain.Account{Username: "trainer1", Password: "plain"}, nil)
	store.EXPECT().Put(mockAnyContext(), "pogo/trainer1", "hunter2").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{Username: "trainer1", PasswordRef: "pogo/trainer1"}).Return(nil)

	require.NoError(t, service.SetPassword(context.Background(), "trainer1", "pogo/trainer1", "hunter2"))
}

func TestServiceSetPasswordRotationDeletesPreviousRef(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewService(repo, store)

	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).
		Return(domain.Account{Username: "trainer1", PasswordRef: "pogo/old"}, nil)
	store.EXPECT().Put(mockAnyContext(), "pogo/new", "hunter2").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{Username: "trainer1", PasswordRef: "pogo/new"}).Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "pogo/old").Return(nil)

	require.NoError(t, service.SetPassword(context.Background(), "trainer1", "pogo/new", "hunter2"))
}

func TestServiceSetPasswordRollsBackWhenPreviousDeleteFails(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewService(repo, store)

	deleteErr := errors.New("delete old secret failed")
	original := domain.Account{Username: "trainer1", PasswordRef: "pogo/old"}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).Return(original, nil)
	store.EXPECT().Put(mockAnyContext(), "pogo/new", "hunter2").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{Username: "trainer1", PasswordRef: "pogo/new"}).Return(nil).Once()
	store.EXPECT().Delete(mockAnyContext(), "pogo/old").Return(deleteErr)
	repo.EXPECT().Save(mockAnyContext(), original).Return(nil).Once()
	store.EXPECT().Delete(mockAnyContext(), "pogo/new").Return(nil)

	err := service.SetPassword(context.Background(), "trainer1", "pogo/new", "hunter2")
	require.ErrorIs(t, err, deleteErr)
}

func TestServiceSetPasswordRollsBackSecretWhenSaveFails(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewService(repo, store)

	saveErr := errors.New("disk full")
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).Return(domain.Account{Username: "trainer1"}, nil)
	store.EXPECT().Put(mockAnyContext(), "pogo/trainer1", "hunter2").Return(nil)
	repo.EXPECT().Save(mockAnyContext(), mock.AnythingOfType("domain.Account")).Return(saveErr)
	store.EXPECT().Delete(mockAnyContext(), "pogo/trainer1").Return(nil)

	err := service.SetPassword(context.Background(), "trainer1", "pogo/trainer1", "hunter2")
	require.ErrorIs(t, err, saveErr)
}

func TestServiceSetPasswordUnknownAccount(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewService(repo, store)

	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("ghost")).Return(domain.Account{}, domain.ErrAccountNotFound)

	err := service.SetPassword(context.Background(), "ghost", "pogo/ghost", "x")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestServiceRemovePasswordToleratesMissingSecret(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewService(repo, store)

	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).
		Return(domain.Account{Username: "trainer1", PasswordRef: "pogo/trainer1"}, nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{Username: "trainer1"}).Return(nil)
	store.EXPECT().Delete(mockAnyContext(), "pogo/trainer1").Return(domain.ErrSecretNotFound)

	require.NoError(t, service.RemovePassword(context.Background(), "trainer1"))
}

func TestServiceRemovePasswordRestoresRefWhenDeleteFails(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	service := NewService(repo, store)

	deleteErr := errors.New("pass exploded")
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).
		Return(domain.Account{Username: "trainer1", PasswordRef: "pogo/trainer1"}, nil)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{Username: "trainer1"}).Return(nil).Once()
	store.EXPECT().Delete(mockAnyContext(), "pogo/trainer1").Return(deleteErr)
	repo.EXPECT().Save(mockAnyContext(), domain.Account{Username: "trainer1", PasswordRef: "pogo/trainer1"}).Return(nil).Once()

	err := service.RemovePassword(context.Background(), "trainer1")
	require.ErrorIs(t, err, deleteErr)
}

func TestServiceAddAccount(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	service := NewService(repo, mocks.NewMockSecretStore(t))

	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).Return(domain.Account{}, domain.ErrAccountNotFound)
	repo.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(account domain.Account) bool {
		return account.Username == "trainer1" && account.AuthService == domain.AuthServiceGoogle && account.Password == ""
	})).Return(nil)

	account, err := service.AddAccount(context.Background(), " trainer1 ", domain.AuthServiceGoogle)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMaxItems, account.MaxItems)
}

func TestServiceAddAccountRejectsDuplicatesAndBlankNames(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	service := NewService(repo, mocks.NewMockSecretStore(t))

	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).Return(domain.Account{Username: "trainer1"}, nil)

	_, err := service.AddAccount(context.Background(), "trainer1", domain.AuthServicePTC)
	require.ErrorIs(t, err, domain.ErrAccountExists)

	_, err = service.AddAccount(context.Background(), "  ", domain.AuthServicePTC)
	require.Error(t, err)
}

func TestServiceSaveSetRequiresStoredMembers(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	service := NewService(repo, mocks.NewMockSecretStore(t))

	set := domain.AccountSet{Name: "north", Members: []domain.AccountID{"trainer1", "ghost"}}
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("trainer1")).Return(domain.Account{Username: "trainer1"}, nil)
	repo.EXPECT().GetByID(mockAnyContext(), domain.AccountID("ghost")).Return(domain.Account{}, domain.ErrAccountNotFound)

	err := service.SaveSet(context.Background(), set)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestServiceGetStatusAllGroupsUnassignedAccountsIntoDefaultSet(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	service := NewService(repo, mocks.NewMockSecretStore(t))

	repo.EXPECT().List(mockAnyContext()).Return([]domain.Account{
		{Username: "trainer1", PasswordRef: "pogo/trainer1"},
		{Username: "trainer2", CaptchaFlagged: true},
		{Username: "trainer3", Password: "inline", HourSpinRate: 12},
	}, nil)
	repo.EXPECT().ListSets(mockAnyContext()).Return([]domain.AccountSet{
		{Name: "north", Members: []domain.AccountID{"trainer1"}},
	}, nil)

	statuses, err := service.GetStatusAll(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Equal(t, "north", statuses[0].Set)
	assert.True(t, statuses[0].HasPassword)
	assert.Equal(t, DefaultSetName, statuses[1].Set)
	assert.True(t, statuses[1].Quarantined)
	assert.False(t, statuses[1].HasPassword)
	assert.Equal(t, DefaultSetName, statuses[2].Set)
	assert.Equal(t, 12.0, statuses[2].HourSpinRate)
}

func TestServiceGetStatusPropagatesListError(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	service := NewService(repo, mocks.NewMockSecretStore(t))

	listErr := errors.New("list failed")
	repo.EXPECT().List(mockAnyContext()).Return(nil, listErr)

	_, err := service.GetStatus(context.Background(), "trainer1")
	require.ErrorIs(t, err, listErr)
}

func TestServiceLoadSchedulerFromTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.toml")
	content := `version = 1

[[accounts]]
username = "north1"
password = "pw"
auth_service = "ptc"

[[accounts]]
username = "north2"
password = "pw"
auth_service = "ptc"
captcha_flagged = true

[[accounts]]
username = "loose"
password = "pw"
auth_service = "google"

[[sets]]
name = "north"
max_speed_kmph = 20
members = ["north1", "north2"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := viper.New()
	cfg.Set("accounts.path", path)
	repo, err := tomlrepo.NewRepository(cfg)
	require.NoError(t, err)

	service := NewService(repo, mocks.NewMockSecretStore(t))
	scheduler := NewScheduler(DefaultMaxSpeedKmph)
	loaded, err := service.LoadScheduler(context.Background(), scheduler)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	snapshot := scheduler.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "north", snapshot[0].Name)
	assert.Equal(t, 20.0, snapshot[0].MaxSpeedKmph)
	require.Len(t, snapshot[0].Accounts, 2)
	assert.True(t, snapshot[0].Accounts[1].Quarantined)
	assert.Equal(t, DefaultSetName, snapshot[1].Name)
	assert.Equal(t, "loose", snapshot[1].Accounts[0].Username)

	account, err := scheduler.Acquire("north", domain.Coords{Lat: 1, Lng: 1})
	require.NoError(t, err)
	assert.Equal(t, "north1", account.Username)
	_, err = scheduler.Acquire("north", domain.Coords{Lat: 1, Lng: 1})
	require.ErrorIs(t, err, domain.ErrNoAccountAvailable)
	scheduler.Release(account)
}

func mockAnyContext() interface{} {
	return mock.Anything
}
