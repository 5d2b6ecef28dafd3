package domain

import (
	"fmt"
	"strings"
)

type AuthService string

const (
	AuthServicePTC    AuthService = "ptc"
	AuthServiceGoogle AuthService = "google"
)

func ParseAuthService(raw string) (AuthService, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "ptc":
		return AuthServicePTC, nil
	case "google":
		return AuthServiceGoogle, nil
	default:
		return "", fmt.Errorf("unsupported auth service %q", raw)
	}
}
