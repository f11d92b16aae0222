package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lborres/vouch"
)

type Adapter struct {
	pool *pgxpool.Pool
}

var (
	_ vouch.StorageAdapter  = (*Adapter)(nil)
	_ vouch.IdentityApplier = (*Adapter)(nil)
)

func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{
		pool: pool,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS public.principals (
    id text PRIMARY KEY,
    email text NOT NULL DEFAULT '',
    name text NOT NULL DEFAULT '',
    is_active boolean NOT NULL DEFAULT true,
    is_staff boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS public.api_credentials (
    id text PRIMARY KEY,
    principal_id text NOT NULL REFERENCES public.principals(id) ON DELETE CASCADE,
    name varchar(100) NOT NULL,
    scheme text NOT NULL,
    prefix text NOT NULL,
    hashed_secret text NOT NULL,
    is_active boolean NOT NULL DEFAULT true,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    last_used_at timestamptz,
    CONSTRAINT api_credentials_prefix_unique UNIQUE (prefix)
);

CREATE INDEX IF NOT EXISTS api_credentials_principal_id_idx
ON public.api_credentials (principal_id);

CREATE TABLE IF NOT EXISTS public.verification_sessions (
    session_id text PRIMARY KEY,
    principal_id text NOT NULL REFERENCES public.principals(id) ON DELETE CASCADE,
    authorization_url text NOT NULL,
    redirect_url text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS public.verified_identities (
    principal_id text PRIMARY KEY REFERENCES public.principals(id) ON DELETE CASCADE,
    session_id text NOT NULL,
    method text NOT NULL,
    name text NOT NULL,
    date_of_birth text NOT NULL DEFAULT '',
    gender text NOT NULL DEFAULT '',
    house text NOT NULL DEFAULT '',
    district text NOT NULL DEFAULT '',
    state text NOT NULL DEFAULT '',
    pincode text NOT NULL DEFAULT '',
    verified_at timestamptz NOT NULL
);
`

// Migrate creates the tables used by the adapter. It is idempotent.
func (a *Adapter) Migrate(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, schema)
	return err
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
