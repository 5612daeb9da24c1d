package repository

import (
	"context"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type referenceRepository struct {
	db DBTX
}

// NewReferenceRepository returns repository.
func NewReferenceRepository(db DBTX) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.QueryRow(ctx, `SELECT id, name FROM accounts WHERE id=$1`, id).Scan(&account.ID, &account.Name); err != nil {
		return nil, mapError(err)
	}
	return &account, nil
}

func (r *referenceRepository) GetSite(ctx context.Context, id string) (*domain.Site, error) {
	const query = `SELECT id, account_id, name, region FROM sites WHERE id=$1`
	var site domain.Site
	if err := r.db.QueryRow(ctx, query, id).Scan(&site.ID, &site.AccountID, &site.Name, &site.Region); err != nil {
		return nil, mapError(err)
	}
	return &site, nil
}

func (r *referenceRepository) GetTechnician(ctx context.Context, id string) (*domain.Technician, error) {
	const query = `
        SELECT id, name, provider_id, capabilities, home_region, service_regions, active_flag
        FROM technicians WHERE id=$1`
	var tech domain.Technician
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&tech.ID,
		&tech.Name,
		&tech.ProviderID,
		&tech.Capabilities,
		&tech.HomeRegion,
		&tech.ServiceRegions,
		&tech.Active,
	); err != nil {
		return nil, mapError(err)
	}
	return &tech, nil
}

func (r *referenceRepository) ListActiveTechnicians(ctx context.Context) ([]domain.Technician, error) {
	const query = `
        SELECT id, name, provider_id, capabilities, home_region, service_regions, active_flag
        FROM technicians WHERE active_flag ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var tech domain.Technician
		if err := rows.Scan(
			&tech.ID,
			&tech.Name,
			&tech.ProviderID,
			&tech.Capabilities,
			&tech.HomeRegion,
			&tech.ServiceRegions,
			&tech.Active,
		); err != nil {
			return nil, err
		}
		result = append(result, tech)
	}
	return result, rows.Err()
}
