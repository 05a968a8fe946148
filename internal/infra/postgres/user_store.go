package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizkeeper/internal/domain"
)

// UserStore persists profiles keyed by identity subject.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) GetBySubject(ctx context.Context, subject string) (domain.UserProfile, bool, error) {
	return s.Get(ctx, subject)
}

func (s *UserStore) Get(ctx context.Context, id string) (domain.UserProfile, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM users WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProfile{}, false, nil
	}
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("load user: %w", err)
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("unmarshal user: %w", err)
	}
	return profile, true, nil
}

func (s *UserStore) Upsert(ctx context.Context, profile domain.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data=excluded.data`,
		profile.ID, raw)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
