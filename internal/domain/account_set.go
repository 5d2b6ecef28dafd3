package domain

import (
	"fmt"
	"strings"
)

// AccountSet is a named partition of accounts scheduled together, e.g. the
// regular scanning accounts versus high-level accounts.
type AccountSet struct {
	Name         string
	MaxSpeedKmph float64
	Members      []AccountID
}

func (s AccountSet) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if s.MaxSpeedKmph < 0 {
		return fmt.Errorf("max speed must not be negative")
	}
	if len(s.Members) == 0 {
		return fmt.Errorf("set %s has no members", s.Name)
	}

	return nil
}

func (s *AccountSet) NormalizeMembers() {
	if s == nil {
		return
	}

	members := make([]AccountID, 0, len(s.Members))
	seen := make(map[AccountID]struct{}, len(s.Members))
	for _, member := range s.Members {
		trimmed := AccountID(strings.TrimSpace(string(member)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		members = append(members, trimmed)
	}

	s.Members = members
}

// ValidateSets checks that set names are unique and that no account is a
// member of more than one set.
func ValidateSets(sets []AccountSet) error {
	names := make(map[string]struct{}, len(sets))
	owners := make(map[AccountID]string)
	for _, set := range sets {
		if err := set.Validate(); err != nil {
			return err
		}
		if _, ok := names[set.Name]; ok {
			return fmt.Errorf("%w: %s", ErrAccountSetExists, set.Name)
		}
		names[set.Name] = struct{}{}

		for _, member := range set.Members {
			if owner, ok := owners[member]; ok {
				return fmt.Errorf("%w: %s is in %s and %s", ErrAccountInOtherSet, member, owner, set.Name)
			}
			owners[member] = set.Name
		}
	}

	return nil
}
