package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"quizkeeper/internal/domain"
)

const backupFileName = "quizkeeper-backup.json"

// DriveBackup stores the snapshot in the Google Drive application data
// folder, addressed by the user's access token. Writes replace the whole
// file; Drive exposes no partial-write visibility to other readers.
type DriveBackup struct {
	// newService is swappable for tests.
	newService func(ctx context.Context, accessToken string) (*drive.Service, error)
}

func NewDriveBackup() *DriveBackup {
	return &DriveBackup{newService: driveService}
}

func driveService(ctx context.Context, accessToken string) (*drive.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return drive.NewService(ctx, option.WithTokenSource(src))
}

// Load downloads the snapshot. A missing file yields (nil, nil).
func (b *DriveBackup) Load(ctx context.Context, accessToken string) ([]domain.Quiz, error) {
	svc, err := b.newService(ctx, accessToken)
	if err != nil {
		return nil, categorizeDrive(err)
	}

	fileID, err := b.findFile(ctx, svc)
	if err != nil {
		return nil, err
	}
	if fileID == "" {
		return nil, nil // no backup yet
	}

	resp, err := svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, categorizeDrive(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewRemoteError(domain.CategoryNetwork, 0, "read drive backup", err)
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil {
		return nil, domain.NewRemoteError(domain.CategoryGeneric, 0, "decode drive backup", err)
	}
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	return quizzes, nil
}

// Save overwrites the snapshot, creating the file on first use.
func (b *DriveBackup) Save(ctx context.Context, accessToken string, quizzes []domain.Quiz) error {
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	raw, err := json.Marshal(quizzes)
	if err != nil {
		return fmt.Errorf("encode drive backup: %w", err)
	}

	svc, err := b.newService(ctx, accessToken)
	if err != nil {
		return categorizeDrive(err)
	}

	fileID, err := b.findFile(ctx, svc)
	if err != nil {
		return err
	}

	if fileID == "" {
		meta := &drive.File{Name: backupFileName, Parents: []string{"appDataFolder"}}
		_, err = svc.Files.Create(meta).Media(bytes.NewReader(raw)).Context(ctx).Do()
	} else {
		_, err = svc.Files.Update(fileID, &drive.File{}).Media(bytes.NewReader(raw)).Context(ctx).Do()
	}
	if err != nil {
		return categorizeDrive(err)
	}
	return nil
}

func (b *DriveBackup) findFile(ctx context.Context, svc *drive.Service) (string, error) {
	list, err := svc.Files.List().
		Spaces("appDataFolder").
		Q(fmt.Sprintf("name = '%s' and trashed = false", backupFileName)).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return "", categorizeDrive(err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func categorizeDrive(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return domain.NewRemoteError(domain.CategoryUnauthenticated, gerr.Code, "drive token rejected", err)
		case gerr.Code == http.StatusForbidden:
			return domain.NewRemoteError(domain.CategoryForbidden, gerr.Code, "drive access forbidden", err)
		case gerr.Code == http.StatusTooManyRequests:
			return domain.NewRemoteError(domain.CategoryRateLimited, gerr.Code, "drive rate limited", err)
		case gerr.Code >= 500:
			return domain.NewRemoteError(domain.CategoryNetwork, gerr.Code, "drive unavailable", err)
		default:
			return domain.NewRemoteError(domain.CategoryGeneric, gerr.Code, gerr.Message, err)
		}
	}
	return domain.NewRemoteError(domain.CategoryNetwork, 0, "drive request failed", err)
}
