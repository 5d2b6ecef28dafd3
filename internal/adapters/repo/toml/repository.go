package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/pogo-accounts/internal/domain"
	"github.com/bnema/pogo-accounts/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	accountsPathKey    = "accounts.path"
	accountsFileMode   = 0o600
	accountsDirMode    = 0o700
	accountsConfigDir  = ".pogo-accounts"
	accountsConfigFile = "accounts.toml"
	tempFilePattern    = ".accounts-*.toml.tmp"
)

// Repository stores accounts and account sets in a single TOML file. Writes
// go through a temp file and rename so readers never see a partial file.
type Repository struct {
	accountsPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.AccountRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	accountsPath := cfg.GetString(accountsPathKey)
	if accountsPath == "" {
		accountsPath = filepath.Join(homeDir, accountsConfigDir, accountsConfigFile)
	}
	accountsPath, err = normalizeAccountsPath(accountsPath, homeDir)
	if err != nil {
		return nil, err
	}

	return &Repository{accountsPath: accountsPath, mu: lockForPath(accountsPath)}, nil
}

func (r *Repository) Path() string {
	return r.accountsPath
}

// Save upserts account by username. Sets are left untouched.
func (r *Repository) Save(ctx context.Context, account domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(account)
	updated := false
	for i := range file.Accounts {
		if file.Accounts[i].Username == encoded.Username {
			file.Accounts[i] = encoded
			updated = true
			break
		}
	}

	if !updated {
		file.Accounts = append(file.Accounts, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

// SaveSet upserts set by name.
func (r *Repository) SaveSet(ctx context.Context, set domain.AccountSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	set.NormalizeMembers()
	if err := set.Validate(); err != nil {
		return fmt.Errorf("validate account set: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSetSchema(set)
	updated := false
	for i := range file.Sets {
		if file.Sets[i].Name == encoded.Name {
			file.Sets[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Sets = append(file.Sets, encoded)
	}

	if err := domain.ValidateSets(fromSetSchemas(file.Sets)); err != nil {
		return fmt.Errorf("validate account sets: %w", err)
	}

	return r.writeSchema(file)
}

func (r *Repository) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Account{}, err
	}

	for _, entry := range file.Accounts {
		if entry.Username == string(id) {
			return fromSchema(entry)
		}
	}

	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		account, err := fromSchema(entry)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

func (r *Repository) ListSets(ctx context.Context) ([]domain.AccountSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	return fromSetSchemas(file.Sets), nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.accountsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read accounts file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode accounts file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeAccountsPath(path, homeDir string) (string, error) {
	if path == "~" {
		path = homeDir
	} else if rest, ok := strings.CutPrefix(path, "~/"); ok {
		path = filepath.Join(homeDir, rest)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve accounts path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	dir := filepath.Dir(r.accountsPath)
	if err := os.MkdirAll(dir, accountsDirMode); err != nil {
		return fmt.Errorf("create accounts directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode accounts file: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp accounts file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp accounts file: %w", err)
	}
	if err := tempFile.Chmod(accountsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp accounts file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp accounts file: %w", err)
	}

	if err := os.Rename(tempName, r.accountsPath); err != nil {
		return fmt.Errorf("replace accounts file: %w", err)
	}
	cleanup = false

	if err := os.Chmod(r.accountsPath, accountsFileMode); err != nil {
		return fmt.Errorf("chmod accounts file: %w", err)
	}

	return nil
}

// toSchema never writes a password that came from the secret store.
func toSchema(account domain.Account) accountSchema {
	password := account.Password
	if account.PasswordRef != "" {
		password = ""
	}

	return accountSchema{
		Username:       account.Username,
		Password:       password,
		PasswordRef:    account.PasswordRef,
		AuthService:    string(account.AuthService),
		CaptchaFlagged: account.CaptchaFlagged,
		Progress: progressSchema{
			Level:         account.Level,
			WalkedKm:      account.WalkedKm,
			SpinCount:     account.SpinCount,
			HourSpinRate:  account.HourSpinRate,
			LastScannedAt: formatTime(account.LastScannedAt),
			LastLat:       account.LastCoords.Lat,
			LastLng:       account.LastCoords.Lng,
		},
	}
}

func fromSchema(entry accountSchema) (domain.Account, error) {
	service, err := domain.ParseAuthService(entry.AuthService)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: %w", entry.Username, err)
	}

	return domain.Account{
		Username:       entry.Username,
		Password:       entry.Password,
		PasswordRef:    entry.PasswordRef,
		AuthService:    service,
		CaptchaFlagged: entry.CaptchaFlagged,
		Level:          entry.Progress.Level,
		WalkedKm:       entry.Progress.WalkedKm,
		SpinCount:      entry.Progress.SpinCount,
		HourSpinRate:   entry.Progress.HourSpinRate,
		LastScannedAt:  parseTime(entry.Progress.LastScannedAt),
		LastCoords:     domain.Coords{Lat: entry.Progress.LastLat, Lng: entry.Progress.LastLng},
		MaxItems:       domain.DefaultMaxItems,
		MaxPokemon:     domain.DefaultMaxPokemon,
	}, nil
}

func toSetSchema(set domain.AccountSet) setSchema {
	members := make([]string, 0, len(set.Members))
	for _, member := range set.Members {
		members = append(members, string(member))
	}

	return setSchema{
		Name:         set.Name,
		MaxSpeedKmph: set.MaxSpeedKmph,
		Members:      members,
	}
}

func fromSetSchemas(entries []setSchema) []domain.AccountSet {
	sets := make([]domain.AccountSet, 0, len(entries))
	for _, entry := range entries {
		members := make([]domain.AccountID, 0, len(entry.Members))
		for _, member := range entry.Members {
			members = append(members, domain.AccountID(member))
		}
		set := domain.AccountSet{Name: entry.Name, MaxSpeedKmph: entry.MaxSpeedKmph, Members: members}
		set.NormalizeMembers()
		sets = append(sets, set)
	}

	return sets
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
