package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/debateradar/pkg/trend"
)

// DateLayout is the layout of run and topic dates.
const DateLayout = "2006-01-02"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Run records one pipeline execution.
type Run struct {
	ID               string            `db:"id" json:"id"`
	Date             string            `db:"run_date" json:"date"`
	SourceCountsJSON string            `db:"source_counts" json:"-"`
	SourceCounts     map[string]int    `db:"-" json:"source_counts"`
	SourceErrorsJSON string            `db:"source_errors" json:"-"`
	SourceErrors     map[string]string `db:"-" json:"source_errors,omitempty"`
	Clusters         int               `db:"clusters" json:"clusters"`
	WeightsJSON      string            `db:"weights" json:"-"`
	Weights          trend.Weights     `db:"-" json:"weights"`
	StartedAt        time.Time         `db:"started_at" json:"started_at"`
	FinishedAt       *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
}

// Candidate is one persisted entry of a run's ranked list.
type Candidate struct {
	ID             int64              `db:"id" json:"-"`
	RunID          string             `db:"run_id" json:"run_id"`
	Rank           int                `db:"rank" json:"rank"`
	Title          string             `db:"title" json:"title"`
	CompositeScore float64            `db:"composite_score" json:"composite_score"`
	SourcesJSON    string             `db:"sources" json:"-"`
	Sources        []string           `db:"-" json:"contributing_sources"`
	SignalsJSON    string             `db:"signals" json:"-"`
	Signals        map[string]float64 `db:"-" json:"per_source_signals"`
	MembersJSON    string             `db:"members" json:"-"`
	Members        []trend.Member     `db:"-" json:"members,omitempty"`
}

// Topic is the debate topic selected for a date.
type Topic struct {
	ID                   int64     `db:"id" json:"id"`
	Date                 string    `db:"topic_date" json:"date"`
	RunID                string    `db:"run_id" json:"run_id,omitempty"`
	Title                string    `db:"title" json:"title"`
	Category             string    `db:"category" json:"category"`
	Question             string    `db:"question" json:"question"`
	Summary              string    `db:"summary" json:"summary"`
	ArgumentsForJSON     string    `db:"arguments_for" json:"-"`
	ArgumentsFor         []string  `db:"-" json:"arguments_for"`
	ArgumentsAgainstJSON string    `db:"arguments_against" json:"-"`
	ArgumentsAgainst     []string  `db:"-" json:"arguments_against"`
	Candidate            string    `db:"candidate" json:"candidate,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// TopicListOpts controls topic listing.
type TopicListOpts struct {
	Since string // inclusive date, DateLayout
	Limit int
}

// Store is the persistence interface.
type Store interface {
	CreateRun(ctx context.Context, date string, weights trend.Weights) (*Run, error)
	FinishRun(ctx context.Context, run *Run) error
	LatestRun(ctx context.Context) (*Run, error)

	SaveCandidates(ctx context.Context, runID string, ranked []trend.Ranked) error
	ListCandidates(ctx context.Context, runID string) ([]Candidate, error)

	SaveTopic(ctx context.Context, t *Topic) error
	GetTopicByDate(ctx context.Context, date string) (*Topic, error)
	ListTopics(ctx context.Context, opts TopicListOpts) ([]Topic, error)
	RecentTitles(ctx context.Context, since string) ([]string, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, date string, weights trend.Weights) (*Run, error) {
	weightsJSON, _ := json.Marshal(weights)
	run := &Run{
		ID:           uuid.NewString(),
		Date:         date,
		SourceCounts: map[string]int{},
		Weights:      weights,
		StartedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, run_date, weights, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Date, string(weightsJSON), run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	countsJSON, _ := json.Marshal(run.SourceCounts)
	errorsJSON, _ := json.Marshal(run.SourceErrors)
	finished := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET source_counts = ?, source_errors = ?, clusters = ?, finished_at = ?
		WHERE id = ?
	`, string(countsJSON), string(errorsJSON), run.Clusters, finished, run.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	run.FinishedAt = &finished
	return nil
}

// LatestRun returns the most recently started finished run.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run,
		"SELECT * FROM runs WHERE finished_at IS NOT NULL ORDER BY started_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	decodeRun(&run)
	return &run, nil
}

func decodeRun(run *Run) {
	_ = json.Unmarshal([]byte(run.SourceCountsJSON), &run.SourceCounts)
	_ = json.Unmarshal([]byte(run.SourceErrorsJSON), &run.SourceErrors)
	_ = json.Unmarshal([]byte(run.WeightsJSON), &run.Weights)
}

// SaveCandidates stores a run's ranked list in one transaction, rank 1 first.
func (s *SQLiteStore) SaveCandidates(ctx context.Context, runID string, ranked []trend.Ranked) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save candidates: %w", err)
	}
	defer tx.Rollback()

	for i, r := range ranked {
		sources := make([]string, len(r.ContributingSources))
		for j, st := range r.ContributingSources {
			sources[j] = string(st)
		}
		sourcesJSON, _ := json.Marshal(sources)
		signalsJSON, _ := json.Marshal(r.PerSourceSignals)
		membersJSON, _ := json.Marshal(r.Members)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO candidates (run_id, rank, title, composite_score, sources, signals, members)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, i+1, r.Title, r.CompositeScore, string(sourcesJSON), string(signalsJSON), string(membersJSON))
		if err != nil {
			return fmt.Errorf("insert candidate %d of run %s: %w", i+1, runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit candidates: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, runID string) ([]Candidate, error) {
	var candidates []Candidate
	err := s.db.SelectContext(ctx, &candidates,
		"SELECT * FROM candidates WHERE run_id = ? ORDER BY rank", runID)
	if err != nil {
		return nil, fmt.Errorf("list candidates %s: %w", runID, err)
	}

	for i := range candidates {
		c := &candidates[i]
		_ = json.Unmarshal([]byte(c.SourcesJSON), &c.Sources)
		_ = json.Unmarshal([]byte(c.SignalsJSON), &c.Signals)
		_ = json.Unmarshal([]byte(c.MembersJSON), &c.Members)
	}
	return candidates, nil
}

// SaveTopic inserts the topic for its date, replacing an earlier pick for the same date.
func (s *SQLiteStore) SaveTopic(ctx context.Context, t *Topic) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	forJSON, _ := json.Marshal(nonNil(t.ArgumentsFor))
	againstJSON, _ := json.Marshal(nonNil(t.ArgumentsAgainst))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topics (topic_date, run_id, title, category, question, summary, arguments_for, arguments_against, candidate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(topic_date) DO UPDATE SET
			run_id = excluded.run_id,
			title = excluded.title,
			category = excluded.category,
			question = excluded.question,
			summary = excluded.summary,
			arguments_for = excluded.arguments_for,
			arguments_against = excluded.arguments_against,
			candidate = excluded.candidate,
			created_at = excluded.created_at
	`, t.Date, t.RunID, t.Title, t.Category, t.Question, t.Summary,
		string(forJSON), string(againstJSON), t.Candidate, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("save topic %s: %w", t.Date, err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, "SELECT id FROM topics WHERE topic_date = ?", t.Date); err != nil {
		return fmt.Errorf("read topic id %s: %w", t.Date, err)
	}
	t.ID = id
	return nil
}

func (s *SQLiteStore) GetTopicByDate(ctx context.Context, date string) (*Topic, error) {
	var t Topic
	err := s.db.GetContext(ctx, &t, "SELECT * FROM topics WHERE topic_date = ?", date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic %s: %w", date, err)
	}
	decodeTopic(&t)
	return &t, nil
}

func (s *SQLiteStore) ListTopics(ctx context.Context, opts TopicListOpts) ([]Topic, error) {
	query := "SELECT * FROM topics WHERE 1=1"
	var args []any

	if opts.Since != "" {
		query += " AND topic_date >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY topic_date DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 30
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var topics []Topic
	if err := s.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	for i := range topics {
		decodeTopic(&topics[i])
	}
	return topics, nil
}

// RecentTitles returns the titles selected on or after since, newest first.
func (s *SQLiteStore) RecentTitles(ctx context.Context, since string) ([]string, error) {
	var titles []string
	err := s.db.SelectContext(ctx, &titles,
		"SELECT title FROM topics WHERE topic_date >= ? ORDER BY topic_date DESC", since)
	if err != nil {
		return nil, fmt.Errorf("recent titles: %w", err)
	}
	return titles, nil
}

func decodeTopic(t *Topic) {
	_ = json.Unmarshal([]byte(t.ArgumentsForJSON), &t.ArgumentsFor)
	_ = json.Unmarshal([]byte(t.ArgumentsAgainstJSON), &t.ArgumentsAgainst)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
