package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const postColumns = `id, request_id, post_type, body_text, hashtags, predicted_engagement, image,
	image_incomplete, status, scheduled_date, posted_date, engagement_actual, created_at`

// SQLiteStorage is the default local store. Writes are serialized through
// a single connection and, for file databases, an advisory file lock.
type SQLiteStorage struct {
	db     *sql.DB
	lock   *FileLock
	logger *zap.Logger
}

// NewSQLiteStorage opens path (":memory:" for a throwaway database). An
// empty lockPath defaults to path + ".lock".
func NewSQLiteStorage(path, lockPath string, logger *zap.Logger) (*SQLiteStorage, error) {
	var lock *FileLock
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("error creating database dir: %v", err)
		}
		if lockPath == "" {
			lockPath = path + ".lock"
		}
		lock = NewFileLock(lockPath)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring database: %v", err)
	}

	storage := &SQLiteStorage{db: db, lock: lock, logger: logger}
	if err := storage.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) migrate() error {
	schema, err := migrationSQL("sqlite")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// write runs fn in one transaction under the file lock.
func (s *SQLiteStorage) write(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if s.lock != nil {
		unlock, err := s.lock.Lock()
		if err != nil {
			return writeFailed(op, err)
		}
		defer unlock()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailed(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return err
		}
		s.logger.Error("Failed to write to store", zap.String("op", op), zap.Error(err))
		return writeFailed(op, err)
	}
	if err := tx.Commit(); err != nil {
		return writeFailed(op, err)
	}
	return nil
}

func (s *SQLiteStorage) Save(ctx context.Context, p *models.GeneratedPost) error {
	if err := validatePost(p); err != nil {
		return err
	}
	hashtags, image, err := encodeAttachments(p)
	if err != nil {
		return writeFailed("save", err)
	}

	return s.write(ctx, "save", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO generated_posts (`+postColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				request_id = excluded.request_id,
				post_type = excluded.post_type,
				body_text = excluded.body_text,
				hashtags = excluded.hashtags,
				predicted_engagement = excluded.predicted_engagement,
				image = excluded.image,
				image_incomplete = excluded.image_incomplete,
				status = excluded.status,
				scheduled_date = excluded.scheduled_date,
				posted_date = excluded.posted_date,
				engagement_actual = excluded.engagement_actual`,
			p.ID, p.RequestID, string(p.PostType), p.BodyText, hashtags, p.PredictedEngagement, image,
			p.ImageIncomplete, string(p.Status), p.ScheduledDate.Unix(), unixOrNil(p.PostedDate),
			floatOrNil(p.EngagementActual), p.CreatedAt.Unix(),
		)
		return err
	})
}

func (s *SQLiteStorage) Get(ctx context.Context, id string) (*models.GeneratedPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM generated_posts WHERE id = ?`, id)
	p, err := scanSQLitePost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying post: %v", err)
	}
	return p, nil
}

func (s *SQLiteStorage) UpdateStatus(ctx context.Context, id string, status models.PostStatus, at time.Time) error {
	return s.write(ctx, "update_status", func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM generated_posts WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		from := models.PostStatus(current)
		if !from.CanTransition(status) {
			return invalidTransition(id, from, status)
		}
		if status == models.StatusPosted {
			_, err = tx.ExecContext(ctx, `UPDATE generated_posts SET status = ?, posted_date = ? WHERE id = ?`,
				string(status), at.Unix(), id)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE generated_posts SET status = ? WHERE id = ?`, string(status), id)
		}
		return err
	})
}

func (s *SQLiteStorage) QueryDue(ctx context.Context, from, to time.Time) ([]*models.GeneratedPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM generated_posts
		WHERE scheduled_date >= ? AND scheduled_date < ?
		ORDER BY scheduled_date, id`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("error querying posts: %v", err)
	}
	return collectSQLitePosts(rows)
}

func (s *SQLiteStorage) List(ctx context.Context, limit int) ([]*models.GeneratedPost, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM generated_posts
		ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying posts: %v", err)
	}
	return collectSQLitePosts(rows)
}

func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	return s.write(ctx, "delete", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM generated_posts WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLiteStorage) AppendEngagement(ctx context.Context, rec models.EngagementRecord) error {
	return s.write(ctx, "append_engagement", func(tx *sql.Tx) error {
		if rec.PostType == "" {
			var pt string
			err := tx.QueryRowContext(ctx, `SELECT post_type FROM generated_posts WHERE id = ?`, rec.PostID).Scan(&pt)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			rec.PostType = models.PostType(pt)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_analytics (post_id, post_type, likes, comments, shares, views, observed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.PostID, string(rec.PostType), rec.Likes, rec.Comments, rec.Shares, rec.Views, rec.ObservedAt.Unix(),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE generated_posts SET engagement_actual = ? WHERE id = ?`, rec.Score(), rec.PostID)
		return err
	})
}

func (s *SQLiteStorage) Engagement(ctx context.Context, postType models.PostType) ([]models.EngagementRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, post_type, likes, comments, shares, views, observed_at
		FROM post_analytics WHERE post_type = ? ORDER BY observed_at, id`, string(postType))
	if err != nil {
		return nil, fmt.Errorf("error querying engagement: %v", err)
	}
	defer rows.Close()

	var out []models.EngagementRecord
	for rows.Next() {
		var r models.EngagementRecord
		var pt string
		var observed int64
		if err := rows.Scan(&r.PostID, &pt, &r.Likes, &r.Comments, &r.Shares, &r.Views, &observed); err != nil {
			return nil, fmt.Errorf("error scanning engagement: %v", err)
		}
		r.PostType = models.PostType(pt)
		r.ObservedAt = time.Unix(observed, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) LoadCalendar(ctx context.Context) (*models.Calendar, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT calendar FROM posting_schedule WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading calendar: %v", err)
	}
	var cal models.Calendar
	if err := json.Unmarshal([]byte(raw), &cal); err != nil {
		return nil, fmt.Errorf("error decoding calendar: %v", err)
	}
	return &cal, nil
}

func (s *SQLiteStorage) SaveCalendar(ctx context.Context, cal models.Calendar) error {
	raw, err := json.Marshal(cal)
	if err != nil {
		return writeFailed("save_calendar", err)
	}
	return s.write(ctx, "save_calendar", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO posting_schedule (id, calendar, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET calendar = excluded.calendar, updated_at = excluded.updated_at`,
			string(raw), time.Now().Unix())
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePost(row rowScanner) (*models.GeneratedPost, error) {
	var (
		p                  models.GeneratedPost
		postType, status   string
		hashtags           string
		image              sql.NullString
		scheduled, created int64
		posted             sql.NullInt64
		engagement         sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.RequestID, &postType, &p.BodyText, &hashtags, &p.PredictedEngagement, &image,
		&p.ImageIncomplete, &status, &scheduled, &posted, &engagement, &created); err != nil {
		return nil, err
	}
	p.PostType = models.PostType(postType)
	p.Status = models.PostStatus(status)
	p.ScheduledDate = time.Unix(scheduled, 0).UTC()
	p.CreatedAt = time.Unix(created, 0).UTC()
	if posted.Valid {
		t := time.Unix(posted.Int64, 0).UTC()
		p.PostedDate = &t
	}
	if engagement.Valid {
		v := engagement.Float64
		p.EngagementActual = &v
	}
	if err := json.Unmarshal([]byte(hashtags), &p.Hashtags); err != nil {
		return nil, fmt.Errorf("decode hashtags: %w", err)
	}
	if image.Valid && image.String != "" {
		var d models.ImageDescriptor
		if err := json.Unmarshal([]byte(image.String), &d); err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		p.Image = &d
	}
	return &p, nil
}

func collectSQLitePosts(rows *sql.Rows) ([]*models.GeneratedPost, error) {
	defer rows.Close()
	var out []*models.GeneratedPost
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning post: %v", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func encodeAttachments(p *models.GeneratedPost) (string, *string, error) {
	tags := p.Hashtags
	if tags == nil {
		tags = []string{}
	}
	hb, err := json.Marshal(tags)
	if err != nil {
		return "", nil, err
	}
	if p.Image == nil {
		return string(hb), nil, nil
	}
	ib, err := json.Marshal(p.Image)
	if err != nil {
		return "", nil, err
	}
	image := string(ib)
	return string(hb), &image, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
