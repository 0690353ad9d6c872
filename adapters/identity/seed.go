package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/internal/security"
)

// SeedPrincipal is one entry of a principals seed file.
type SeedPrincipal struct {
	ID              string `mapstructure:"id"`
	Role            string `mapstructure:"role"`
	Status          string `mapstructure:"status"`
	Phone           string `mapstructure:"phone"`
	InstitutionCode string `mapstructure:"institution_code"`
	AccountNumber   string `mapstructure:"account_number"`
	// Secret is hashed on load; SecretHash is taken as is.
	Secret     string `mapstructure:"secret"`
	SecretHash string `mapstructure:"secret_hash"`
}

// LoadSeedFile reads a YAML, JSON or TOML file with a top-level "principals"
// list and adds every entry to repo. It returns the number of principals added.
func LoadSeedFile(path string, repo *MemoryRepository, hasher *security.Hasher) (int, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seeds []SeedPrincipal
	if err := v.UnmarshalKey("principals", &seeds); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}

	for i, s := range seeds {
		p, err := s.principal(hasher)
		if err != nil {
			return i, fmt.Errorf("seed entry %d: %w", i, err)
		}
		if err := repo.Add(p); err != nil {
			return i, err
		}
	}
	return len(seeds), nil
}

func (s SeedPrincipal) principal(hasher *security.Hasher) (*core.Principal, error) {
	role := core.Role(strings.TrimSpace(s.Role))
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", s.Role)
	}
	status := core.PrincipalStatus(strings.TrimSpace(s.Status))
	if status == "" {
		status = core.StatusActive
	}
	if status != core.StatusActive && status != core.StatusDisabled {
		return nil, fmt.Errorf("unknown status %q", s.Status)
	}
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}

	hash := s.SecretHash
	if hash == "" && s.Secret != "" {
		var err error
		if hash, err = hasher.Hash([]byte(s.Secret)); err != nil {
			return nil, err
		}
	}

	return &core.Principal{
		ID:              id,
		Role:            role,
		Status:          status,
		Phone:           s.Phone,
		InstitutionCode: s.InstitutionCode,
		AccountNumber:   s.AccountNumber,
		SecretHash:      hash,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
