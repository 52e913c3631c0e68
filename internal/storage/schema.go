package storage

// Timestamps are stored as INTEGER unix milliseconds.
const schema = `
-- The 'cards' table stores the scheduling state of each (lemma, sense) pair.
CREATE TABLE IF NOT EXISTS cards (
    lemma TEXT NOT NULL,
    sense_id TEXT NOT NULL DEFAULT 'primary',
    entry_type TEXT NOT NULL DEFAULT 'word',
    due INTEGER NOT NULL,
    stability REAL NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    elapsed_days REAL NOT NULL DEFAULT 0,
    scheduled_days REAL NOT NULL DEFAULT 0,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    state INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    last_review INTEGER,
    skills TEXT, -- JSON object keyed by skill name

    PRIMARY KEY (lemma, sense_id)
);

CREATE INDEX IF NOT EXISTS idx_cards_lemma ON cards(lemma);
CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(due);

-- The 'review_logs' table is append-only: one row per rating event. Two
-- events for the same card may share an instant.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lemma TEXT NOT NULL,
    sense_id TEXT NOT NULL,
    reviewed_at INTEGER NOT NULL,
    skill INTEGER NOT NULL DEFAULT 0, -- 0: main card
    rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 4),
    skill_rating INTEGER NOT NULL DEFAULT 0,
    state_before INTEGER NOT NULL,
    state_after INTEGER NOT NULL,
    stability_before REAL NOT NULL,
    stability_after REAL NOT NULL,
    difficulty_before REAL NOT NULL,
    difficulty_after REAL NOT NULL,
    elapsed_days REAL NOT NULL DEFAULT 0,
    scheduled_days REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(lemma, sense_id, reviewed_at);

-- The 'daily_stats' table aggregates activity per calendar date.
CREATE TABLE IF NOT EXISTS daily_stats (
    date TEXT PRIMARY KEY CHECK (length(date) = 10), -- YYYY-MM-DD
    new_cards INTEGER NOT NULL DEFAULT 0,
    reviews INTEGER NOT NULL DEFAULT 0,
    again INTEGER NOT NULL DEFAULT 0,
    hard INTEGER NOT NULL DEFAULT 0,
    good INTEGER NOT NULL DEFAULT 0,
    easy INTEGER NOT NULL DEFAULT 0,
    study_time_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS session_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at INTEGER NOT NULL,
    ended_at INTEGER NOT NULL,
    cards_studied INTEGER NOT NULL DEFAULT 0
);

-- The 'meta' table holds sync bookkeeping such as last_updated.
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// copyLegacyReviewLogs moves rows from a review_logs table keyed by
// (lemma, sense_id, reviewed_at) into the current layout.
const copyLegacyReviewLogs = `
INSERT INTO review_logs (lemma, sense_id, reviewed_at, skill, rating, skill_rating,
                         state_before, state_after, stability_before, stability_after,
                         difficulty_before, difficulty_after, elapsed_days, scheduled_days)
SELECT lemma, sense_id, reviewed_at, skill, rating, skill_rating,
       state_before, state_after, stability_before, stability_after,
       difficulty_before, difficulty_after, elapsed_days, scheduled_days
FROM review_logs_legacy ORDER BY reviewed_at;
DROP TABLE review_logs_legacy;
`
