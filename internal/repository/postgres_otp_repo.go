package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/aula/internal/model"
)

// PostgresOtpRepo はPostgreSQLを使用したワンタイムトークンリポジトリ。
type PostgresOtpRepo struct {
	db *sql.DB
}

// NewPostgresOtpRepo はPostgresOtpRepoを生成する。
func NewPostgresOtpRepo(db *sql.DB) *PostgresOtpRepo {
	return &PostgresOtpRepo{db: db}
}

// Create はトークンを作成する。
func (r *PostgresOtpRepo) Create(ctx context.Context, token *model.OtpToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_tokens (id, user_id, token_hash, otp_type, expires_at, consumed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.UserID, token.TokenHash, token.Type,
		token.ExpiresAt, token.ConsumedAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create otp token: %w", err)
	}
	return nil
}

// FindUsableByHash はハッシュと種別で未消費かつ期限内のトークンを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresOtpRepo) FindUsableByHash(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.OtpToken, error) {
	token := &model.OtpToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, otp_type, expires_at, consumed_at, created_at
		 FROM otp_tokens
		 WHERE token_hash = $1 AND otp_type = $2
		   AND consumed_at IS NULL AND expires_at > now()`,
		tokenHash, otpType,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.Type,
		&token.ExpiresAt, &token.ConsumedAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find otp token: %w", err)
	}

	return token, nil
}

// Consume はトークンを消費済みにする。
// 未消費の行だけを対象にするため、二重消費はエラーになる。
func (r *PostgresOtpRepo) Consume(ctx context.Context, id string, consumedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE otp_tokens SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL`,
		consumedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to consume otp token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("otp token not consumable: %s", id)
	}
	return nil
}

// compile-time interface check
var _ OtpRepository = (*PostgresOtpRepo)(nil)
