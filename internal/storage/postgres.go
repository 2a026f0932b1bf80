package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := newPostgresStorage(db, logger)
	if err := storage.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}
	return storage, nil
}

func newPostgresStorage(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

func (s *PostgresStorage) initializeSchema() error {
	schema, err := migrationSQL("postgres")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) write(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
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

func (s *PostgresStorage) Save(ctx context.Context, p *models.GeneratedPost) error {
	if err := validatePost(p); err != nil {
		return err
	}
	var image []byte
	if p.Image != nil {
		b, err := json.Marshal(p.Image)
		if err != nil {
			return writeFailed("save", err)
		}
		image = b
	}
	hashtags := p.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	return s.write(ctx, "save", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO generated_posts (`+postColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				request_id = EXCLUDED.request_id,
				post_type = EXCLUDED.post_type,
				body_text = EXCLUDED.body_text,
				hashtags = EXCLUDED.hashtags,
				predicted_engagement = EXCLUDED.predicted_engagement,
				image = EXCLUDED.image,
				image_incomplete = EXCLUDED.image_incomplete,
				status = EXCLUDED.status,
				scheduled_date = EXCLUDED.scheduled_date,
				posted_date = EXCLUDED.posted_date,
				engagement_actual = EXCLUDED.engagement_actual`,
			p.ID, p.RequestID, string(p.PostType), p.BodyText, pq.Array(hashtags), p.PredictedEngagement, image,
			p.ImageIncomplete, string(p.Status), p.ScheduledDate, timeOrNil(p.PostedDate),
			floatOrNil(p.EngagementActual), p.CreatedAt,
		)
		return err
	})
}

func (s *PostgresStorage) Get(ctx context.Context, id string) (*models.GeneratedPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM generated_posts WHERE id = $1`, id)
	p, err := scanPostgresPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying post: %v", err)
	}
	return p, nil
}

func (s *PostgresStorage) UpdateStatus(ctx context.Context, id string, status models.PostStatus, at time.Time) error {
	return s.write(ctx, "update_status", func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM generated_posts WHERE id = $1 FOR UPDATE`, id).Scan(&current)
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
			_, err = tx.ExecContext(ctx, `UPDATE generated_posts SET status = $1, posted_date = $2 WHERE id = $3`,
				string(status), at, id)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE generated_posts SET status = $1 WHERE id = $2`, string(status), id)
		}
		return err
	})
}

func (s *PostgresStorage) QueryDue(ctx context.Context, from, to time.Time) ([]*models.GeneratedPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM generated_posts
		WHERE scheduled_date >= $1 AND scheduled_date < $2
		ORDER BY scheduled_date, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("error querying posts: %v", err)
	}
	return collectPostgresPosts(rows)
}

func (s *PostgresStorage) List(ctx context.Context, limit int) ([]*models.GeneratedPost, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM generated_posts
		ORDER BY created_at DESC, id LIMIT $1`, limitArg)
	if err != nil {
		return nil, fmt.Errorf("error querying posts: %v", err)
	}
	return collectPostgresPosts(rows)
}

func (s *PostgresStorage) Delete(ctx context.Context, id string) error {
	return s.write(ctx, "delete", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM generated_posts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStorage) AppendEngagement(ctx context.Context, rec models.EngagementRecord) error {
	return s.write(ctx, "append_engagement", func(tx *sql.Tx) error {
		if rec.PostType == "" {
			var pt string
			err := tx.QueryRowContext(ctx, `SELECT post_type FROM generated_posts WHERE id = $1`, rec.PostID).Scan(&pt)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			rec.PostType = models.PostType(pt)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_analytics (post_id, post_type, likes, comments, shares, views, observed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.PostID, string(rec.PostType), rec.Likes, rec.Comments, rec.Shares, rec.Views, rec.ObservedAt,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE generated_posts SET engagement_actual = $1 WHERE id = $2`, rec.Score(), rec.PostID)
		return err
	})
}

func (s *PostgresStorage) Engagement(ctx context.Context, postType models.PostType) ([]models.EngagementRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, post_type, likes, comments, shares, views, observed_at
		FROM post_analytics WHERE post_type = $1 ORDER BY observed_at, id`, string(postType))
	if err != nil {
		return nil, fmt.Errorf("error querying engagement: %v", err)
	}
	defer rows.Close()

	var out []models.EngagementRecord
	for rows.Next() {
		var r models.EngagementRecord
		var pt string
		if err := rows.Scan(&r.PostID, &pt, &r.Likes, &r.Comments, &r.Shares, &r.Views, &r.ObservedAt); err != nil {
			return nil, fmt.Errorf("error scanning engagement: %v", err)
		}
		r.PostType = models.PostType(pt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) LoadCalendar(ctx context.Context) (*models.Calendar, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT calendar FROM posting_schedule WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading calendar: %v", err)
	}
	var cal models.Calendar
	if err := json.Unmarshal(raw, &cal); err != nil {
		return nil, fmt.Errorf("error decoding calendar: %v", err)
	}
	return &cal, nil
}

func (s *PostgresStorage) SaveCalendar(ctx context.Context, cal models.Calendar) error {
	raw, err := json.Marshal(cal)
	if err != nil {
		return writeFailed("save_calendar", err)
	}
	return s.write(ctx, "save_calendar", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO posting_schedule (id, calendar, updated_at) VALUES (1, $1, NOW())
			ON CONFLICT (id) DO UPDATE SET calendar = EXCLUDED.calendar, updated_at = NOW()`, raw)
		return err
	})
}

func scanPostgresPost(row rowScanner) (*models.GeneratedPost, error) {
	var (
		p                models.GeneratedPost
		postType, status string
		image            []byte
		posted           sql.NullTime
		engagement       sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.RequestID, &postType, &p.BodyText, pq.Array(&p.Hashtags), &p.PredictedEngagement,
		&image, &p.ImageIncomplete, &status, &p.ScheduledDate, &posted, &engagement, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.PostType = models.PostType(postType)
	p.Status = models.PostStatus(status)
	if posted.Valid {
		t := posted.Time
		p.PostedDate = &t
	}
	if engagement.Valid {
		v := engagement.Float64
		p.EngagementActual = &v
	}
	if len(image) > 0 {
		var d models.ImageDescriptor
		if err := json.Unmarshal(image, &d); err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		p.Image = &d
	}
	return &p, nil
}

func collectPostgresPosts(rows *sql.Rows) ([]*models.GeneratedPost, error) {
	defer rows.Close()
	var out []*models.GeneratedPost
	for rows.Next() {
		p, err := scanPostgresPost(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning post: %v", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
