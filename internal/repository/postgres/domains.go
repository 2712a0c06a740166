package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
)

// ListDomains returns the full slot pool ordered by code.
func (r *Repository) ListDomains(ctx context.Context) ([]domain.Domain, error) {
	const query = `SELECT code, name, slots, description, set_tag FROM domains ORDER BY code ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pool []domain.Domain
	for rows.Next() {
		var d domain.Domain
		if err := rows.Scan(&d.Code, &d.Name, &d.Slots, &d.Description, &d.Set); err != nil {
			return nil, err
		}
		pool = append(pool, d)
	}
	return pool, rows.Err()
}

// GetDomain fetches a single pool entry by code.
func (r *Repository) GetDomain(ctx context.Context, code string) (*domain.Domain, error) {
	const query = `SELECT code, name, slots, description, set_tag FROM domains WHERE code = $1`
	var d domain.Domain
	if err := r.pool.QueryRow(ctx, query, code).Scan(&d.Code, &d.Name, &d.Slots, &d.Description, &d.Set); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// CountDomains counts pool entries.
func (r *Repository) CountDomains(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM domains`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SeedDomains inserts the pool entries, used on first boot only.
func (r *Repository) SeedDomains(ctx context.Context, pool []domain.Domain) error {
	const query = `INSERT INTO domains (code, name, slots, description, set_tag)
		VALUES ($1, $2, $3, $4, $5)`
	batch := &pgx.Batch{}
	for _, d := range pool {
		batch.Queue(query, d.Code, d.Name, d.Slots, d.Description, d.Set)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pool {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// AllocateSlot decrements a domain's capacity, but only while capacity
// remains. The guard and the decrement are one statement, so two concurrent
// callers can never both take the last slot. ErrNotFound covers both an
// unknown code and an exhausted pool entry.
func (r *Repository) AllocateSlot(ctx context.Context, code string) (*domain.Domain, error) {
	const query = `UPDATE domains SET slots = slots - 1
		WHERE code = $1 AND slots > 0
		RETURNING code, name, slots, description, set_tag`
	var d domain.Domain
	if err := r.pool.QueryRow(ctx, query, code).Scan(&d.Code, &d.Name, &d.Slots, &d.Description, &d.Set); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ResetDomains discards the pool, installs the replacement and clears every
// team's assignment as one transaction. Any failure leaves all three
// untouched.
func (r *Repository) ResetDomains(ctx context.Context, pool []domain.Domain) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM domains`); err != nil {
		return err
	}
	const insert = `INSERT INTO domains (code, name, slots, description, set_tag)
		VALUES ($1, $2, $3, $4, $5)`
	batch := &pgx.Batch{}
	for _, d := range pool {
		batch.Queue(insert, d.Code, d.Name, d.Slots, d.Description, d.Set)
	}
	br := tx.SendBatch(ctx, batch)
	for range pool {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE teams SET domain = NULL`); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
