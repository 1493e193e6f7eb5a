package repository

import (
	"context"
	"database/sql"
)

// LookupRepo serves the reference data behind the signup and search
// dropdowns.
type LookupRepo struct{ DB *sql.DB }

func NewLookupRepo(db *sql.DB) *LookupRepo { return &LookupRepo{DB: db} }

// Cities lists the cities reference table.
func (r *LookupRepo) Cities(ctx context.Context) ([]string, error) {
	return r.strings(ctx, `SELECT name FROM cities ORDER BY name ASC`)
}

// Professions lists the professions reference table.
func (r *LookupRepo) Professions(ctx context.Context) ([]string, error) {
	return r.strings(ctx, `SELECT name FROM professions ORDER BY name ASC`)
}

// ProviderCities lists the distinct non-empty cities providers registered in.
func (r *LookupRepo) ProviderCities(ctx context.Context) ([]string, error) {
	return r.strings(ctx, `SELECT DISTINCT city FROM provider_profiles
                           WHERE city IS NOT NULL AND city <> '' ORDER BY city ASC`)
}

// ProviderProfessions lists the distinct non-empty professions of providers.
func (r *LookupRepo) ProviderProfessions(ctx context.Context) ([]string, error) {
	return r.strings(ctx, `SELECT DISTINCT profession FROM provider_profiles
                           WHERE profession IS NOT NULL AND profession <> '' ORDER BY profession ASC`)
}

func (r *LookupRepo) strings(ctx context.Context, q string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
