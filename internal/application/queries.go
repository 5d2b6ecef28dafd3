package application

import (
	"time"

	"github.com/bnema/pogo-accounts/internal/domain"
)

// Status is the persisted view of one account, as shown by the CLI.
type Status struct {
	Account      domain.Account
	Set          string
	Quarantined  bool
	HasPassword  bool
	LastScanned  time.Time
	HourSpinRate float64
}

const DefaultSetName = "default"
