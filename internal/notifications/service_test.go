package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fooddash-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/pagination"
)

type fakeRepository struct {
	outcome readOutcome
	updated int64
	err     error
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) Create(context.Context, *models.Notification) error { return f.err }

func (f *fakeRepository) ListForUser(context.Context, inboxFilter, int, *pagination.Cursor) ([]models.Notification, error) {
	return nil, f.err
}

func (f *fakeRepository) MarkRead(context.Context, uuid.UUID, uuid.UUID, time.Time) (readOutcome, error) {
	return f.outcome, f.err
}

func (f *fakeRepository) MarkAllRead(context.Context, uuid.UUID, time.Time) (int64, error) {
	return f.updated, f.err
}

func seedInbox(t *testing.T, repo Repository, userID uuid.UUID, n int) []uuid.UUID {
	t.Helper()
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	ids := make([]uuid.UUID, n)
	for i := range ids {
		row := &models.Notification{
			UserID:    userID,
			Type:      enums.NotificationTypeOrderStatus,
			Title:     "Order update",
			Message:   "status changed",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(context.Background(), row))
		ids[i] = row.ID
	}
	return ids
}

func TestListWalksPagesNewestFirst(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	userID := uuid.New()
	ids := seedInbox(t, repo, userID, 3)

	first, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, ids[2], first.Items[0].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, ids[0], second.Items[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestListRejectsBadCursorAndMissingUser(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "bad"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(context.Background(), ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkReadOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		repo    *fakeRepository
		wantErr pkgerrors.Code
	}{
		{name: "marked", repo: &fakeRepository{outcome: readMarked}},
		{name: "already read", repo: &fakeRepository{outcome: readAlready}},
		{name: "missing", repo: &fakeRepository{outcome: readMissing}, wantErr: pkgerrors.CodeNotFound},
		{name: "store down", repo: &fakeRepository{err: errors.New("boom")}, wantErr: pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewService(tc.repo)
			require.NoError(t, err)
			err = svc.MarkRead(context.Background(), uuid.New(), uuid.New())
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, pkgerrors.IsCode(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestMarkAllReadCountsOnlyUnread(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	userID := uuid.New()
	ids := seedInbox(t, repo, userID, 3)
	require.NoError(t, svc.MarkRead(context.Background(), userID, ids[0]))

	updated, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	unread, err := svc.List(context.Background(), ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
