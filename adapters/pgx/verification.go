package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/lborres/vouch"
)

func (a *Adapter) SaveVerificationSession(ctx context.Context, s *vouch.VerificationSession) error {
	query := `INSERT INTO public.verification_sessions (session_id, principal_id, authorization_url, redirect_url, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (session_id) DO UPDATE
	          SET principal_id = EXCLUDED.principal_id, authorization_url = EXCLUDED.authorization_url, redirect_url = EXCLUDED.redirect_url`

	_, err := a.pool.Exec(ctx, query, s.SessionID, s.PrincipalID, s.AuthorizationURL, s.RedirectURL, s.CreatedAt)
	if pgErrorCode(err) == foreignKeyViolation {
		return vouch.ErrPrincipalNotFound
	}
	return err
}

func (a *Adapter) GetVerificationSession(ctx context.Context, sessionID string) (*vouch.VerificationSession, error) {
	q := `SELECT session_id, principal_id, authorization_url, redirect_url, created_at FROM public.verification_sessions WHERE session_id = $1`

	s := &vouch.VerificationSession{}
	err := a.pool.QueryRow(ctx, q, sessionID).Scan(&s.SessionID, &s.PrincipalID, &s.AuthorizationURL, &s.RedirectURL, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vouch.ErrVerificationNotFound
		}
		return nil, err
	}
	return s, nil
}

func (a *Adapter) DeleteVerificationSession(ctx context.Context, sessionID string) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM public.verification_sessions WHERE session_id = $1`, sessionID)
	return err
}

// ApplyVerifiedIdentity stores the latest verified identity for a
// principal, replacing any earlier one.
func (a *Adapter) ApplyVerifiedIdentity(ctx context.Context, v vouch.VerifiedIdentity) error {
	query := `INSERT INTO public.verified_identities
	              (principal_id, session_id, method, name, date_of_birth, gender, house, district, state, pincode, verified_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          ON CONFLICT (principal_id) DO UPDATE
	          SET session_id = EXCLUDED.session_id, method = EXCLUDED.method, name = EXCLUDED.name,
	              date_of_birth = EXCLUDED.date_of_birth, gender = EXCLUDED.gender, house = EXCLUDED.house,
	              district = EXCLUDED.district, state = EXCLUDED.state, pincode = EXCLUDED.pincode,
	              verified_at = EXCLUDED.verified_at`

	r := v.Record
	_, err := a.pool.Exec(ctx, query,
		v.PrincipalID, v.SessionID, v.Method, r.Name, r.DateOfBirth, r.Gender,
		r.Address.House, r.Address.District, r.Address.State, r.Address.Pincode, v.VerifiedAt,
	)
	if pgErrorCode(err) == foreignKeyViolation {
		return vouch.ErrPrincipalNotFound
	}
	return err
}

func (a *Adapter) GetVerifiedIdentity(ctx context.Context, principalID string) (*vouch.VerifiedIdentity, error) {
	q := `SELECT principal_id, session_id, method, name, date_of_birth, gender, house, district, state, pincode, verified_at
	      FROM public.verified_identities WHERE principal_id = $1`

	v := &vouch.VerifiedIdentity{}
	r := &v.Record
	err := a.pool.QueryRow(ctx, q, principalID).Scan(
		&v.PrincipalID, &v.SessionID, &v.Method, &r.Name, &r.DateOfBirth, &r.Gender,
		&r.Address.House, &r.Address.District, &r.Address.State, &r.Address.Pincode, &v.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vouch.ErrVerificationNotFound
		}
		return nil, err
	}
	return v, nil
}
