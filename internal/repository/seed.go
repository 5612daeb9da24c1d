package repository

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the reference data a deployment starts with.
type Seed struct {
	Accounts    []domain.Account    `yaml:"accounts"`
	Sites       []domain.Site       `yaml:"sites"`
	Technicians []domain.Technician `yaml:"technicians"`
}

// ParseSeed decodes and validates seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	accounts := map[string]bool{}
	for _, a := range seed.Accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("seed account without id")
		}
		accounts[a.ID] = true
	}
	for _, s := range seed.Sites {
		if s.ID == "" {
			return nil, fmt.Errorf("seed site without id")
		}
		if !accounts[s.AccountID] {
			return nil, fmt.Errorf("seed site %s references unknown account %q", s.ID, s.AccountID)
		}
	}
	for _, t := range seed.Technicians {
		if t.ID == "" {
			return nil, fmt.Errorf("seed technician without id")
		}
	}
	return &seed, nil
}

// DefaultSeed returns the embedded development data set.
func DefaultSeed() *Seed {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(err)
	}
	return seed
}

// LoadSeedFile reads seed YAML from path, or the embedded set when path is empty.
func LoadSeedFile(path string) (*Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ApplySeed upserts the seed into Postgres.
func ApplySeed(ctx context.Context, db DBTX, seed *Seed) error {
	for _, a := range seed.Accounts {
		if _, err := db.Exec(ctx, `
            INSERT INTO accounts (id, name) VALUES ($1,$2)
            ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`, a.ID, a.Name); err != nil {
			return fmt.Errorf("seed account %s: %w", a.ID, err)
		}
	}
	for _, s := range seed.Sites {
		if _, err := db.Exec(ctx, `
            INSERT INTO sites (id, account_id, name, region) VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO UPDATE SET account_id=EXCLUDED.account_id, name=EXCLUDED.name, region=EXCLUDED.region`,
			s.ID, s.AccountID, s.Name, s.Region); err != nil {
			return fmt.Errorf("seed site %s: %w", s.ID, err)
		}
	}
	for _, t := range seed.Technicians {
		capabilities := nonNil(t.Capabilities)
		regions := nonNil(t.ServiceRegions)
		if _, err := db.Exec(ctx, `
            INSERT INTO technicians (id, name, provider_id, capabilities, home_region, service_regions, active_flag)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, provider_id=EXCLUDED.provider_id,
                capabilities=EXCLUDED.capabilities, home_region=EXCLUDED.home_region,
                service_regions=EXCLUDED.service_regions, active_flag=EXCLUDED.active_flag`,
			t.ID, t.Name, t.ProviderID, capabilities, t.HomeRegion, regions, t.Active); err != nil {
			return fmt.Errorf("seed technician %s: %w", t.ID, err)
		}
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
