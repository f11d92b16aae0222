package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/lborres/vouch"
)

// UpsertPrincipal mirrors a user from the host application.
func (a *Adapter) UpsertPrincipal(ctx context.Context, p *vouch.Principal) error {
	query := `INSERT INTO public.principals (id, email, name, is_active, is_staff)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (id) DO UPDATE
	          SET email = EXCLUDED.email, name = EXCLUDED.name, is_active = EXCLUDED.is_active, is_staff = EXCLUDED.is_staff`

	_, err := a.pool.Exec(ctx, query, p.ID, p.Email, p.Name, p.IsActive, p.IsStaff)
	return err
}

func (a *Adapter) GetPrincipalByID(ctx context.Context, id string) (*vouch.Principal, error) {
	q := `SELECT id, email, name, is_active, is_staff FROM public.principals WHERE id = $1`

	p := &vouch.Principal{}
	err := a.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Email, &p.Name, &p.IsActive, &p.IsStaff)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vouch.ErrPrincipalNotFound
		}
		return nil, err
	}
	return p, nil
}
