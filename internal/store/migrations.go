package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    run_date      TEXT NOT NULL,
    source_counts TEXT NOT NULL DEFAULT '{}',
    source_errors TEXT NOT NULL DEFAULT '{}',
    clusters      INTEGER NOT NULL DEFAULT 0,
    weights       TEXT NOT NULL DEFAULT '{}',
    started_at    DATETIME NOT NULL,
    finished_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(run_date);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS candidates (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL REFERENCES runs(id),
    rank            INTEGER NOT NULL,
    title           TEXT NOT NULL,
    composite_score REAL NOT NULL DEFAULT 0,
    sources         TEXT NOT NULL DEFAULT '[]',
    signals         TEXT NOT NULL DEFAULT '{}',
    members         TEXT NOT NULL DEFAULT '[]',
    UNIQUE(run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_candidates_run ON candidates(run_id);

CREATE TABLE IF NOT EXISTS topics (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_date        TEXT NOT NULL UNIQUE,
    run_id            TEXT NOT NULL DEFAULT '',
    title             TEXT NOT NULL,
    category          TEXT NOT NULL DEFAULT '',
    question          TEXT NOT NULL DEFAULT '',
    summary           TEXT NOT NULL DEFAULT '',
    arguments_for     TEXT NOT NULL DEFAULT '[]',
    arguments_against TEXT NOT NULL DEFAULT '[]',
    candidate         TEXT NOT NULL DEFAULT '',
    created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_topics_created ON topics(created_at);
`
