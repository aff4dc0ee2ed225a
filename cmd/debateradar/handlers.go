package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/debateradar/internal/config"
	"github.com/elonfeng/debateradar/internal/logging"
	"github.com/elonfeng/debateradar/internal/pipeline"
	"github.com/elonfeng/debateradar/internal/scheduler"
	"github.com/elonfeng/debateradar/internal/store"
	"github.com/elonfeng/debateradar/pkg/alert"
	"github.com/elonfeng/debateradar/pkg/decide"
	"github.com/elonfeng/debateradar/pkg/server"
	"github.com/elonfeng/debateradar/pkg/source"
	"github.com/elonfeng/debateradar/pkg/trend"
)

// app holds everything built from the configuration.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func loadApp() (*app, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) buildSources() []source.Source {
	cfg := a.cfg.Sources
	filter := source.NewFilter(a.cfg.Filter.ExcludeKeywords)
	var sources []source.Source

	if cfg.Reddit.Enabled {
		sources = append(sources, source.NewReddit(
			cfg.Reddit.ClientID,
			cfg.Reddit.ClientSecret,
			cfg.Reddit.Subreddits,
			cfg.Reddit.Limit,
			filter,
			a.logger.WithPrefix("reddit"),
		))
	}
	if cfg.GoogleTrends.Enabled {
		var opts []source.TrendsOption
		if cfg.GoogleTrends.FeedURL != "" {
			opts = append(opts, source.WithTrendsFeedURL(cfg.GoogleTrends.FeedURL))
		}
		sources = append(sources, source.NewGoogleTrends(
			cfg.GoogleTrends.Geo,
			filter,
			a.logger.WithPrefix("trends"),
			opts...,
		))
	}
	if cfg.YouTube.Enabled {
		sources = append(sources, source.NewYouTube(
			cfg.YouTube.APIKey,
			cfg.YouTube.Queries,
			cfg.YouTube.Region,
			filter,
			a.logger.WithPrefix("youtube"),
		))
	}

	return sources
}

func (a *app) buildDecider() decide.Decider {
	d := a.cfg.Decider
	if !d.Enabled || d.APIKey == "" {
		return nil
	}
	llm := decide.NewLLM(d.Provider, d.Model, d.APIKey, d.BaseURL)
	a.logger.Info("decider enabled", "model", llm.Name(), "history_days", d.HistoryDays)
	return llm
}

func (a *app) buildAlertManager() *alert.Manager {
	var notifiers []alert.Notifier

	if a.cfg.Alerts.Slack.Enabled && a.cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(a.cfg.Alerts.Slack.WebhookURL))
	}
	if a.cfg.Alerts.Webhook.Enabled && a.cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(a.cfg.Alerts.Webhook.URL, a.cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func (a *app) buildPipeline(sources []source.Source, db store.Store) (*pipeline.Orchestrator, error) {
	order, err := a.cfg.Sources.FanInOrder()
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(a.cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	opts := pipeline.Options{
		Sources:     sources,
		Order:       order,
		Engine:      trend.NewEngine(a.cfg.Ranking),
		Logger:      a.logger.WithPrefix("pipeline"),
		Timeout:     a.cfg.Sources.ParseTimeout(),
		HistoryDays: a.cfg.Decider.HistoryDays,
		Location:    loc,
		Alerts:      a.buildAlertManager(),
	}
	if db != nil {
		opts.Store = db
		opts.Decider = a.buildDecider()
	}
	return pipeline.New(opts), nil
}

func runCollect(ctx context.Context, wanted []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	sources := a.buildSources()
	if len(wanted) > 0 {
		want := make(map[source.Type]bool)
		for _, w := range wanted {
			t, ok := source.ParseType(strings.ToLower(strings.TrimSpace(w)))
			if !ok {
				return fmt.Errorf("unknown source %q", w)
			}
			want[t] = true
		}
		var picked []source.Source
		for _, s := range sources {
			if want[s.Name()] {
				picked = append(picked, s)
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("no enabled sources match: %s", strings.Join(wanted, ", "))
		}
		sources = picked
	}
	if len(sources) == 0 {
		return errors.New("no sources enabled (set credentials or enable google_trends)")
	}

	p, err := a.buildPipeline(sources, nil)
	if err != nil {
		return err
	}
	col := p.Collect(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tITEMS\tERROR")
	for _, b := range col.Batches {
		errText := ""
		if err := col.Errors[b.Source]; err != nil {
			errText = err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", b.Source, len(b.Items), errText)
	}
	return w.Flush()
}

func runRank(ctx context.Context, jsonOutput bool, limit int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	p, err := a.buildPipeline(a.buildSources(), nil)
	if err != nil {
		return err
	}
	ranked, _ := p.Rank(ctx)
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	if len(ranked) == 0 {
		fmt.Println("no candidates found (check that at least one source is enabled)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSCORE\tDISC\tVIDEO\tTRENDS\tSOURCES\tTITLE")
	for i, r := range ranked {
		sources := make([]string, len(r.ContributingSources))
		for j, s := range r.ContributingSources {
			sources[j] = string(s)
		}
		fmt.Fprintf(w, "%d\t%.3f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			i+1, r.CompositeScore,
			r.PerSourceSignals[source.TypeDiscussion],
			r.PerSourceSignals[source.TypeVideo],
			r.PerSourceSignals[source.TypeTrends],
			strings.Join(sources, ","), r.Title)
	}
	return w.Flush()
}

func runTopics(ctx context.Context, jsonOutput bool, limit int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	topics, err := db.ListTopics(ctx, store.TopicListOpts{Limit: limit})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(topics)
	}

	if len(topics) == 0 {
		fmt.Println("no topics yet (try: debateradar run --once)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCATEGORY\tTITLE\tQUESTION")
	for _, t := range topics {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Date, t.Category, t.Title, t.Question)
	}
	return w.Flush()
}

func runServe(ctx context.Context, port int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if port == 0 {
		port = a.cfg.Server.Port
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	p, err := a.buildPipeline(a.buildSources(), db)
	if err != nil {
		return err
	}

	return server.New(db, p, a.logger.WithPrefix("server"), port).ListenAndServe(ctx)
}

func runOnce(ctx context.Context, date string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	p, err := a.buildPipeline(a.buildSources(), db)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, date)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runDaemon(ctx context.Context, port int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if port == 0 {
		port = a.cfg.Server.Port
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	p, err := a.buildPipeline(a.buildSources(), db)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(a.cfg.Schedule.Cron, a.cfg.Schedule.Timezone, a.cfg.Schedule.RunOnStart,
		p, a.logger.WithPrefix("scheduler"))
	if err != nil {
		return err
	}
	srv := server.New(db, p, a.logger.WithPrefix("server"), port)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	err = g.Wait()
	a.logger.Info("shutting down")
	return err
}
