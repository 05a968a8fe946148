// Package backup reads and writes a single JSON snapshot of the user's quiz
// collection to a per-user cloud-drive file.
package backup

import (
	"context"

	"quizkeeper/internal/domain"
)

// Backup abstracts the cloud snapshot file. Load returns (nil, nil) when no
// backup file exists yet, which is distinct from an existing empty snapshot.
type Backup interface {
	Load(ctx context.Context, accessToken string) ([]domain.Quiz, error)
	Save(ctx context.Context, accessToken string, quizzes []domain.Quiz) error
}
