package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/calassist/calassist/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

// TokenRepository is a TokenStore backed by the google_oauth_tokens table.
// Each account name owns one row.
type TokenRepository struct {
	db      *pgxpool.Pool
	account string
	clock   utils.Clock
}

func NewTokenRepository(db *pgxpool.Pool, account string, clock utils.Clock) *TokenRepository {
	return &TokenRepository{db: db, account: account, clock: clock}
}

func (r *TokenRepository) Load(ctx context.Context) (*oauth2.Token, error) {
	query := `SELECT access_token, refresh_token, token_type, expiry
		FROM google_oauth_tokens WHERE account = $1`

	var token oauth2.Token
	err := r.db.QueryRow(ctx, query, r.account).Scan(
		&token.AccessToken,
		&token.RefreshToken,
		&token.TokenType,
		&token.Expiry,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth token: %w", err)
	}
	return &token, nil
}

func (r *TokenRepository) Save(ctx context.Context, token *oauth2.Token) error {
	query := `INSERT INTO google_oauth_tokens (account, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		r.account,
		token.AccessToken,
		token.RefreshToken,
		token.TokenType,
		token.Expiry,
		r.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to store oauth token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Delete(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "DELETE FROM google_oauth_tokens WHERE account = $1", r.account)
	if err != nil {
		return fmt.Errorf("failed to delete oauth token: %w", err)
	}
	return nil
}
