package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/repository"
)

type seedFile struct {
	Accounts []seedAccount `yaml:"accounts"`
}

type seedAccount struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Email      string            `yaml:"email"`
	Role       domain.StaffRole  `yaml:"role"`
	Department domain.Department `yaml:"department"`
	City       string            `yaml:"city"`
	Inactive   bool              `yaml:"inactive"`
}

// LoadSeed reads accounts from a YAML seed file.
func LoadSeed(path string) ([]domain.StaffMember, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(content)
}

// ParseSeed decodes and validates seed accounts.
func ParseSeed(content []byte) ([]domain.StaffMember, error) {
	var doc seedFile
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	members := make([]domain.StaffMember, 0, len(doc.Accounts))
	seen := map[string]bool{}
	var errs []error
	for i, acc := range doc.Accounts {
		acc.ID = strings.TrimSpace(acc.ID)
		switch {
		case acc.ID == "":
			errs = append(errs, fmt.Errorf("accounts[%d]: id required", i))
			continue
		case seen[acc.ID]:
			errs = append(errs, fmt.Errorf("accounts[%d]: duplicate id %s", i, acc.ID))
			continue
		case !acc.Role.Valid():
			errs = append(errs, fmt.Errorf("accounts[%d]: unknown role %q", i, acc.Role))
			continue
		case acc.Department != "" && !acc.Department.Valid():
			errs = append(errs, fmt.Errorf("accounts[%d]: unknown department %q", i, acc.Department))
			continue
		}
		seen[acc.ID] = true
		members = append(members, domain.StaffMember{
			ID:         acc.ID,
			Name:       acc.Name,
			Email:      acc.Email,
			Role:       acc.Role,
			Department: acc.Department,
			City:       strings.TrimSpace(acc.City),
			Active:     !acc.Inactive,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return members, nil
}

// Seed creates accounts that do not exist yet. Existing accounts are left untouched.
func Seed(ctx context.Context, staff repository.StaffRepository, members []domain.StaffMember, logger *zap.Logger) (int, error) {
	created := 0
	for i := range members {
		member := members[i]
		_, err := staff.GetByID(ctx, member.ID)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, pgx.ErrNoRows):
			return created, fmt.Errorf("look up account %s: %w", member.ID, err)
		}
		if err := staff.Create(ctx, &member); err != nil {
			return created, fmt.Errorf("create account %s: %w", member.ID, err)
		}
		created++
	}
	logger.Info("seed accounts loaded", zap.Int("created", created), zap.Int("total", len(members)))
	return created, nil
}
