package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
	Sets     []setSchema     `toml:"sets,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported accounts schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	Username    string `toml:"username"`
	Password    string `toml:"password,omitempty"`
	PasswordRef string `toml:"password_ref,omitempty"`
	AuthService string `toml:"auth_service"`

	CaptchaFlagged bool           `toml:"captcha_flagged,omitempty"`
	Progress       progressSchema `toml:"progress,omitempty"`
}

type progressSchema struct {
	Level         int     `toml:"level,omitempty"`
	WalkedKm      float64 `toml:"walked_km,omitempty"`
	SpinCount     int     `toml:"spin_count,omitempty"`
	HourSpinRate  float64 `toml:"hour_spin_rate,omitempty"`
	LastScannedAt string  `toml:"last_scanned_at,omitempty"`
	LastLat       float64 `toml:"last_lat,omitempty"`
	LastLng       float64 `toml:"last_lng,omitempty"`
}

type setSchema struct {
	Name         string   `toml:"name"`
	MaxSpeedKmph float64  `toml:"max_speed_kmph,omitempty"`
	Members      []string `toml:"members"`
}
