package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lborres/vouch"
)

const credentialColumns = `id, principal_id, name, scheme, prefix, hashed_secret, is_active, created_at, last_used_at`

func (a *Adapter) CreateCredential(ctx context.Context, c *vouch.APICredential) error {
	query := `INSERT INTO public.api_credentials (id, principal_id, name, scheme, prefix, hashed_secret, is_active, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := a.pool.Exec(ctx, query,
		c.ID, c.PrincipalID, c.Name, c.Scheme, c.Prefix, c.HashedSecret, c.IsActive, c.CreatedAt,
	)
	switch pgErrorCode(err) {
	case uniqueViolation:
		return vouch.ErrPrefixTaken
	case foreignKeyViolation:
		return vouch.ErrPrincipalNotFound
	}
	return err
}

func (a *Adapter) GetCredentialByID(ctx context.Context, id string) (*vouch.APICredential, error) {
	q := `SELECT ` + credentialColumns + ` FROM public.api_credentials WHERE id = $1`
	return scanCredential(a.pool.QueryRow(ctx, q, id))
}

func (a *Adapter) GetCredentialByPrefix(ctx context.Context, prefix string) (*vouch.APICredential, error) {
	q := `SELECT ` + credentialColumns + ` FROM public.api_credentials WHERE prefix = $1`
	return scanCredential(a.pool.QueryRow(ctx, q, prefix))
}

func (a *Adapter) ListCredentialsByPrincipal(ctx context.Context, principalID string) ([]*vouch.APICredential, error) {
	q := `SELECT ` + credentialColumns + ` FROM public.api_credentials WHERE principal_id = $1 ORDER BY created_at, id`
	rows, err := a.pool.Query(ctx, q, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	creds := []*vouch.APICredential{}
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (a *Adapter) SetCredentialActive(ctx context.Context, id string, active bool) error {
	tag, err := a.pool.Exec(ctx, `UPDATE public.api_credentials SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return vouch.ErrCredentialNotFound
	}
	return nil
}

func (a *Adapter) TouchCredential(ctx context.Context, id string, usedAt time.Time) error {
	tag, err := a.pool.Exec(ctx, `UPDATE public.api_credentials SET last_used_at = $1 WHERE id = $2`, usedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return vouch.ErrCredentialNotFound
	}
	return nil
}

func (a *Adapter) DeleteCredential(ctx context.Context, id string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM public.api_credentials WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return vouch.ErrCredentialNotFound
	}
	return nil
}

func scanCredential(row pgx.Row) (*vouch.APICredential, error) {
	c := &vouch.APICredential{}
	err := row.Scan(&c.ID, &c.PrincipalID, &c.Name, &c.Scheme, &c.Prefix, &c.HashedSecret, &c.IsActive, &c.CreatedAt, &c.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vouch.ErrCredentialNotFound
		}
		return nil, err
	}
	return c, nil
}
