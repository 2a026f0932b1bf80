package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
)

func newMockPostgres(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newPostgresStorage(db, zap.NewNop()), mock
}

var postRowColumns = []string{
	"id", "request_id", "post_type", "body_text", "hashtags", "predicted_engagement", "image",
	"image_incomplete", "status", "scheduled_date", "posted_date", "engagement_actual", "created_at",
}

func TestPostgresSaveUpserts(t *testing.T) {
	s, mock := newMockPostgres(t)
	p := samplePost("p1", models.PostTypeMain, day0)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO generated_posts").
		WithArgs("p1", "req-p1", "main", "Body of p1", sqlmock.AnyArg(), 50.0, sqlmock.AnyArg(),
			false, "draft", day0, nil, nil, p.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Save(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveFailureIsWriteFailed(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO generated_posts").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Save(context.Background(), samplePost("p1", models.PostTypeMain, day0))
	require.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetScansRow(t *testing.T) {
	s, mock := newMockPostgres(t)
	posted := day0.Add(10 * time.Hour)

	mock.ExpectQuery("FROM generated_posts WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(postRowColumns).AddRow(
			"p1", "req-1", "capstone", "We did it", "{#Go,#Milestone}", 62.5,
			[]byte(`{"layout":"achievement","style":"branded","palette":["#0077B5"],"overlays":[],"width":1200,"height":630}`),
			false, "posted", day0, posted, 17.0, day0.Add(-time.Hour),
		))

	p, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PostTypeCapstone, p.PostType)
	assert.Equal(t, []string{"#Go", "#Milestone"}, p.Hashtags)
	assert.Equal(t, models.StatusPosted, p.Status)
	require.NotNil(t, p.PostedDate)
	assert.True(t, posted.Equal(*p.PostedDate))
	require.NotNil(t, p.EngagementActual)
	assert.Equal(t, 17.0, *p.EngagementActual)
	require.NotNil(t, p.Image)
	assert.Equal(t, models.LayoutAchievement, p.Image.Layout)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery("FROM generated_posts WHERE id = \\$1").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(postRowColumns))

	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresUpdateStatusLocksRow(t *testing.T) {
	s, mock := newMockPostgres(t)
	at := day0.Add(9 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM generated_posts WHERE id = \\$1 FOR UPDATE").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("scheduled"))
	mock.ExpectExec("UPDATE generated_posts SET status = \\$1, posted_date = \\$2 WHERE id = \\$3").
		WithArgs("posted", at, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpdateStatus(context.Background(), "p1", models.StatusPosted, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatusRejectsTransition(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM generated_posts").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectRollback()

	err := s.UpdateStatus(context.Background(), "p1", models.StatusPosted, day0)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendEngagementFillsPostType(t *testing.T) {
	s, mock := newMockPostgres(t)
	rec := models.EngagementRecord{PostID: "p1", Likes: 3, Comments: 1, ObservedAt: day0}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT post_type FROM generated_posts").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"post_type"}).AddRow("mini"))
	mock.ExpectExec("INSERT INTO post_analytics").
		WithArgs("p1", "mini", 3, 1, 0, 0, day0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE generated_posts SET engagement_actual").
		WithArgs(5.0, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.AppendEngagement(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEngagementByType(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery("FROM post_analytics WHERE post_type = \\$1").
		WithArgs("main").
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "post_type", "likes", "comments", "shares", "views", "observed_at"}).
			AddRow("p1", "main", 10, 2, 1, 100, day0).
			AddRow("gone", "main", 4, 0, 0, 40, day0.Add(time.Hour)))

	records, err := s.Engagement(context.Background(), models.PostTypeMain)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "gone", records[1].PostID)
	assert.Equal(t, 17.0, records[0].Score())
}

func TestPostgresCalendarRoundTrip(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT calendar FROM posting_schedule").
		WillReturnRows(sqlmock.NewRows([]string{"calendar"}))
	_, err := s.LoadCalendar(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO posting_schedule").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	require.NoError(t, s.SaveCalendar(context.Background(), models.Calendar{Cycle: 2}))

	mock.ExpectQuery("SELECT calendar FROM posting_schedule").
		WillReturnRows(sqlmock.NewRows([]string{"calendar"}).AddRow([]byte(`{"cycle":2,"slots":[]}`)))
	cal, err := s.LoadCalendar(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cal.Cycle)
	require.NoError(t, mock.ExpectationsWereMet())
}
