package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/lexicard/internal/domain"
)

// Meta keys.
const (
	MetaLastUpdated = "last_updated"
	MetaDeviceID    = "device_id"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: sqlite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := migrateReviewLogs(db); err != nil {
		return nil, fmt.Errorf("failed to migrate review logs: %w", err)
	}

	return &DB{conn: db}, nil
}

// migrateReviewLogs upgrades a review_logs table without the id column.
func migrateReviewLogs(conn *sql.DB) error {
	var n int
	if err := conn.QueryRow(`SELECT count(*) FROM pragma_table_info('review_logs') WHERE name = 'id'`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`ALTER TABLE review_logs RENAME TO review_logs_legacy`,
		`DROP INDEX IF EXISTS idx_review_logs_card`,
		schema,
		copyLegacyReviewLogs,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LoadCards returns every card record.
func (db *DB) LoadCards(ctx context.Context) ([]CardRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT lemma, sense_id, entry_type, due, stability, difficulty, elapsed_days,
		       scheduled_days, reps, lapses, state, last_review, skills
		FROM cards ORDER BY lemma, sense_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	defer rows.Close()

	var records []CardRecord
	for rows.Next() {
		var r CardRecord
		var lastReview sql.NullInt64
		var skills sql.NullString
		if err := rows.Scan(
			&r.Lemma,
			&r.SenseID,
			&r.EntryType,
			&r.Due,
			&r.Stability,
			&r.Difficulty,
			&r.ElapsedDays,
			&r.ScheduledDays,
			&r.Reps,
			&r.Lapses,
			&r.State,
			&lastReview,
			&skills,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		r.LastReview = lastReview.Int64
		r.Skills = skills.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// SaveCards upserts records in a single transaction.
func (db *DB) SaveCards(ctx context.Context, records []CardRecord) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range records {
			if err := saveCard(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveCard(ctx context.Context, ex execer, r CardRecord) error {
	var lastReview sql.NullInt64
	if r.LastReview != 0 {
		lastReview = sql.NullInt64{Int64: r.LastReview, Valid: true}
	}
	var skills sql.NullString
	if r.Skills != "" {
		skills = sql.NullString{String: r.Skills, Valid: true}
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO cards (lemma, sense_id, entry_type, due, stability, difficulty, elapsed_days,
		                   scheduled_days, reps, lapses, state, last_review, skills)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(lemma, sense_id) DO UPDATE SET
			entry_type = excluded.entry_type,
			due = excluded.due,
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			elapsed_days = excluded.elapsed_days,
			scheduled_days = excluded.scheduled_days,
			reps = excluded.reps,
			lapses = excluded.lapses,
			state = excluded.state,
			last_review = excluded.last_review,
			skills = excluded.skills
	`,
		r.Lemma,
		r.SenseID,
		r.EntryType,
		r.Due,
		r.Stability,
		r.Difficulty,
		r.ElapsedDays,
		r.ScheduledDays,
		r.Reps,
		r.Lapses,
		r.State,
		lastReview,
		skills,
	)
	if err != nil {
		return fmt.Errorf("failed to save card %s#%s: %w", r.Lemma, r.SenseID, err)
	}
	return nil
}

// DeleteCards removes cards and their review logs.
func (db *DB) DeleteCards(ctx context.Context, keys []domain.Key) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE lemma = ? AND sense_id = ?`, k.Lemma, k.SenseID); err != nil {
				return fmt.Errorf("failed to delete card %s: %w", k, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM review_logs WHERE lemma = ? AND sense_id = ?`, k.Lemma, k.SenseID); err != nil {
				return fmt.Errorf("failed to delete review logs of %s: %w", k, err)
			}
		}
		return nil
	})
}

// AppendReviewLog inserts one review log row.
func (db *DB) AppendReviewLog(ctx context.Context, l domain.ReviewLog) error {
	return appendReviewLog(ctx, db.conn, l)
}

func appendReviewLog(ctx context.Context, ex execer, l domain.ReviewLog) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO review_logs (lemma, sense_id, reviewed_at, skill, rating, skill_rating,
		                         state_before, state_after, stability_before, stability_after,
		                         difficulty_before, difficulty_after, elapsed_days, scheduled_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.Lemma,
		l.SenseID,
		toMillis(l.ReviewedAt),
		int(l.Skill),
		int(l.Rating),
		int(l.SkillRating),
		int(l.StateBefore),
		int(l.StateAfter),
		l.StabilityBefore,
		l.StabilityAfter,
		l.DifficultyBefore,
		l.DifficultyAfter,
		l.ElapsedDays,
		l.ScheduledDays,
	)
	if err != nil {
		return fmt.Errorf("failed to append review log for %s#%s: %w", l.Lemma, l.SenseID, err)
	}
	return nil
}

const reviewLogColumns = `lemma, sense_id, reviewed_at, skill, rating, skill_rating, state_before, state_after,
	stability_before, stability_after, difficulty_before, difficulty_after, elapsed_days, scheduled_days`

// ReviewLogsFor returns the logs of one card, oldest first.
func (db *DB) ReviewLogsFor(ctx context.Context, key domain.Key) ([]domain.ReviewLog, error) {
	return db.queryReviewLogs(ctx, `SELECT `+reviewLogColumns+` FROM review_logs
		WHERE lemma = ? AND sense_id = ? ORDER BY reviewed_at, id`, key.Lemma, key.SenseID)
}

// ReviewLogs returns every log, oldest first.
func (db *DB) ReviewLogs(ctx context.Context) ([]domain.ReviewLog, error) {
	return db.queryReviewLogs(ctx, `SELECT `+reviewLogColumns+` FROM review_logs ORDER BY reviewed_at, id`)
}

func (db *DB) queryReviewLogs(ctx context.Context, query string, args ...any) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		var reviewedAt int64
		if err := rows.Scan(
			&l.Lemma,
			&l.SenseID,
			&reviewedAt,
			&l.Skill,
			&l.Rating,
			&l.SkillRating,
			&l.StateBefore,
			&l.StateAfter,
			&l.StabilityBefore,
			&l.StabilityAfter,
			&l.DifficultyBefore,
			&l.DifficultyAfter,
			&l.ElapsedDays,
			&l.ScheduledDays,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		l.ReviewedAt = fromMillis(reviewedAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// RekeyReviewLogs moves every log of one card to another key. Logs already
// under the target key are kept alongside the moved ones.
func (db *DB) RekeyReviewLogs(ctx context.Context, from, to domain.Key) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE review_logs SET lemma = ?, sense_id = ?
		WHERE lemma = ? AND sense_id = ?
	`, to.Lemma, to.SenseID, from.Lemma, from.SenseID)
	if err != nil {
		return fmt.Errorf("failed to move review logs from %s to %s: %w", from, to, err)
	}
	return nil
}

// AddDailyStats adds s to the row for s.Date, creating it if needed.
func (db *DB) AddDailyStats(ctx context.Context, s domain.DailyStats) error {
	return addDailyStats(ctx, db.conn, s)
}

func addDailyStats(ctx context.Context, ex execer, s domain.DailyStats) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO daily_stats (date, new_cards, reviews, again, hard, good, easy, study_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			new_cards = new_cards + excluded.new_cards,
			reviews = reviews + excluded.reviews,
			again = again + excluded.again,
			hard = hard + excluded.hard,
			good = good + excluded.good,
			easy = easy + excluded.easy,
			study_time_ms = study_time_ms + excluded.study_time_ms
	`, s.Date, s.NewCards, s.Reviews, s.Again, s.Hard, s.Good, s.Easy, s.StudyTime.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to add daily stats for %s: %w", s.Date, err)
	}
	return nil
}

const dailyStatsColumns = `date, new_cards, reviews, again, hard, good, easy, study_time_ms`

// DailyStats returns the stats for date (YYYY-MM-DD). The bool is false if
// nothing was recorded that day.
func (db *DB) DailyStats(ctx context.Context, date string) (domain.DailyStats, bool, error) {
	stats, err := db.queryDailyStats(ctx, `SELECT `+dailyStatsColumns+` FROM daily_stats WHERE date = ?`, date)
	if err != nil || len(stats) == 0 {
		return domain.DailyStats{}, false, err
	}
	return stats[0], true, nil
}

// RecentStats returns the recorded days among the last n days up to now, newest first.
func (db *DB) RecentStats(ctx context.Context, now time.Time, n int) ([]domain.DailyStats, error) {
	since := domain.DateKey(now.AddDate(0, 0, -(n - 1)))
	return db.queryDailyStats(ctx, `SELECT `+dailyStatsColumns+` FROM daily_stats
		WHERE date >= ? AND date <= ? ORDER BY date DESC`, since, domain.DateKey(now))
}

// AllDailyStats returns every recorded day, oldest first.
func (db *DB) AllDailyStats(ctx context.Context) ([]domain.DailyStats, error) {
	return db.queryDailyStats(ctx, `SELECT `+dailyStatsColumns+` FROM daily_stats ORDER BY date`)
}

func (db *DB) queryDailyStats(ctx context.Context, query string, args ...any) ([]domain.DailyStats, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyStats
	for rows.Next() {
		var s domain.DailyStats
		var studyMS int64
		if err := rows.Scan(&s.Date, &s.NewCards, &s.Reviews, &s.Again, &s.Hard, &s.Good, &s.Easy, &studyMS); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats row: %w", err)
		}
		s.StudyTime = time.Duration(studyMS) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}

// AppendSessionLog stores a completed session and returns its id.
func (db *DB) AppendSessionLog(ctx context.Context, s domain.SessionLog) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO session_logs (started_at, ended_at, cards_studied)
		VALUES (?, ?, ?)
	`, toMillis(s.StartedAt), toMillis(s.EndedAt), s.CardsStudied)
	if err != nil {
		return 0, fmt.Errorf("failed to append session log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for session log: %w", err)
	}
	return id, nil
}

// SessionLogs returns every session, oldest first.
func (db *DB) SessionLogs(ctx context.Context) ([]domain.SessionLog, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, started_at, ended_at, cards_studied FROM session_logs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get session logs: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionLog
	for rows.Next() {
		var s domain.SessionLog
		var started, ended int64
		if err := rows.Scan(&s.ID, &started, &ended, &s.CardsStudied); err != nil {
			return nil, fmt.Errorf("failed to scan session log row: %w", err)
		}
		s.StartedAt, s.EndedAt = fromMillis(started), fromMillis(ended)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Meta returns the value stored under key.
func (db *DB) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return v, true, nil
}

// SetMeta stores value under key.
func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	return setMeta(ctx, db.conn, key, value)
}

func setMeta(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// AllMeta returns every meta entry.
func (db *DB) AllMeta(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// LastUpdated returns the time of the last local change, zero if none.
func (db *DB) LastUpdated(ctx context.Context) (time.Time, error) {
	return db.MetaTime(ctx, MetaLastUpdated)
}

// TouchLastUpdated records t as the time of the last local change.
func (db *DB) TouchLastUpdated(ctx context.Context, t time.Time) error {
	return db.SetMetaTime(ctx, MetaLastUpdated, t)
}

// MetaTime reads a timestamp stored by SetMetaTime, zero if absent.
func (db *DB) MetaTime(ctx context.Context, key string) (time.Time, error) {
	v, ok, err := db.Meta(ctx, key)
	if err != nil || !ok {
		return time.Time{}, err
	}
	var ms int64
	if _, err := fmt.Sscan(v, &ms); err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return fromMillis(ms), nil
}

// SetMetaTime stores t under key as unix milliseconds.
func (db *DB) SetMetaTime(ctx context.Context, key string, t time.Time) error {
	return db.SetMeta(ctx, key, fmt.Sprint(toMillis(t)))
}

// DeviceID returns this database's device id, creating one on first use.
func (db *DB) DeviceID(ctx context.Context) (string, error) {
	id, ok, err := db.Meta(ctx, MetaDeviceID)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	id = uuid.NewString()
	if err := db.SetMeta(ctx, MetaDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
