package domain

import "errors"

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountExists         = errors.New("account already exists")
	ErrAccountSetNotFound    = errors.New("account set not found")
	ErrAccountSetExists      = errors.New("account set already exists")
	ErrAccountInOtherSet     = errors.New("account already belongs to another set")
	ErrNoAccountAvailable    = errors.New("no account available")
	ErrAccountSetExhausted   = errors.New("every account of the set is quarantined or discarded")
	ErrAccountNotLeased      = errors.New("account released but it was not leased")
	ErrAuthFailed            = errors.New("authentication failed")
	ErrLoginAttemptsExceeded = errors.New("exceeded login attempts")
	ErrSessionQuarantined    = errors.New("session quarantined")
	ErrSecretNotFound        = errors.New("secret not found")
)
