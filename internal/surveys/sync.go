package surveys

import (
	"context"
	"time"

	"plankton/internal/config"
	"plankton/internal/storage"
)

// FetchService pulls the full submission set from the survey platform
// and lands it in sqlite, raw and flattened.
type FetchService struct {
	db     *storage.DB
	client *Client
}

func NewFetchService(db *storage.DB, cfg config.Config) *FetchService {
	return &FetchService{db: db, client: NewClient(cfg)}
}

func (s *FetchService) Fetch(ctx context.Context) (int, error) {
	submissions, err := s.client.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.UpsertSubmissions(submissions); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata("surveys.last_fetch", time.Now().UTC().Format(time.RFC3339))
	return len(submissions), nil
}
