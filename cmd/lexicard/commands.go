package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/review"
	"github.com/conorfennell/lexicard/internal/sync"
	"github.com/conorfennell/lexicard/internal/web"
)

func runServe(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	opts := []web.Option{
		web.WithLogger(a.logger),
		web.WithSessionDefaults(a.cfg.Quiz.NewCards, a.cfg.Quiz.Size),
	}
	if a.cfg.SyncEnabled() {
		client, err := a.syncClient(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, web.WithSyncer(client))
	}
	if a.cfg.Sync.JWTSecret != "" {
		opts = append(opts, web.WithAuth([]byte(a.cfg.Sync.JWTSecret)))
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           web.NewServer(a.engine, a.store, a.db, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", srv.Addr, "entries", a.catalog.Len(), "cards", a.store.Len())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}
	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func runQuiz(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if _, err := a.engine.Introduce(a.cfg.Quiz.NewCards); err != nil {
		return err
	}
	sess := a.engine.Start()
	qs, err := sess.Draw(ctx, a.cfg.Quiz.Size)
	if err != nil {
		sess.Abandon(ctx)
		return err
	}
	if len(qs) == 0 {
		fmt.Fprintln(a.stdout, "Nothing to study right now.")
		return sess.Abandon(ctx)
	}

	in := bufio.NewScanner(a.stdin)
	correct := 0
	for i, q := range qs {
		printQuestion(a, i+1, len(qs), q)
		start := time.Now()
		if !in.Scan() {
			fmt.Fprintln(a.stdout, "\nSession abandoned.")
			return sess.Abandon(ctx)
		}
		line := strings.TrimSpace(in.Text())
		ans := review.Answer{QuestionID: q.ID, ResponseTime: time.Since(start)}
		if strings.HasSuffix(line, "?") {
			ans.HintUsed = true
			line = strings.TrimSpace(strings.TrimSuffix(line, "?"))
		}
		if q.Type == domain.Spelling {
			ans.Text = line
		} else {
			ans.Choice = line
		}

		fb, err := sess.Answer(ctx, ans)
		if err != nil {
			sess.Abandon(ctx)
			return err
		}
		if fb.Correct {
			correct++
			fmt.Fprintf(a.stdout, "Correct (%s). Next review %s.\n", fb.Rating, fb.Due.Local().Format("Jan 2 15:04"))
		} else {
			fmt.Fprintf(a.stdout, "Wrong, the answer is %q.\n", fb.Answer)
		}
		if fb.Explanation.Definition != "" {
			fmt.Fprintf(a.stdout, "  %s: %s\n", q.Lemma, fb.Explanation.Definition)
		}
		if fb.Explanation.Note != "" {
			fmt.Fprintf(a.stdout, "  %s\n", fb.Explanation.Note)
		}
		for _, s := range fb.Unlocked {
			fmt.Fprintf(a.stdout, "  Unlocked %s questions for %q.\n", s, q.Lemma)
		}
		fmt.Fprintln(a.stdout)
	}

	log, err := sess.Finish(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Done: %d/%d correct, %d cards studied in %s.\n",
		correct, len(qs), log.CardsStudied, log.EndedAt.Sub(log.StartedAt).Round(time.Second))
	return nil
}

func printQuestion(a *app, n, total int, q domain.QuizQuestion) {
	fmt.Fprintf(a.stdout, "[%d/%d] %s\n", n, total, q.Prompt)
	if q.SentenceContext != "" && q.SentenceContext != q.Prompt {
		fmt.Fprintf(a.stdout, "  %s\n", q.SentenceContext)
	}
	for _, o := range q.Options {
		fmt.Fprintf(a.stdout, "  %s) %s\n", o.Label, o.Value)
	}
	if q.Type == domain.Spelling {
		fmt.Fprint(a.stdout, "Type the word (end with ? if you needed a hint): ")
	} else {
		fmt.Fprint(a.stdout, "Answer (end with ? if you needed a hint): ")
	}
}

func runSync(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	client, err := a.syncClient(ctx)
	if err != nil {
		return err
	}

	var rep sync.Report
	if raw, _ := fs.GetString("resolve"); raw != "" {
		res, err := sync.ParseResolution(raw)
		if err != nil {
			return err
		}
		rep, err = client.Resolve(ctx, res)
		if err != nil {
			return err
		}
	} else {
		force, _ := fs.GetBool("force")
		rep, err = client.Sync(ctx, force)
		var ce *sync.ConflictError
		if errors.As(err, &ce) {
			fmt.Fprintf(a.stdout, "The cloud copy (%s) is newer than your local changes (%s).\n",
				ce.Remote.Local().Format(time.DateTime), ce.Local.Local().Format(time.DateTime))
			fmt.Fprintln(a.stdout, "Run with --resolve use_cloud or --resolve keep_local, or --force to overwrite it.")
			return err
		}
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(a.stdout, "Sync %s (local %s).\n", rep.Action, rep.Local.Local().Format(time.DateTime))
	return nil
}

func runMigrate(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	rep, err := sync.Reconcile(ctx, a.store, a.db, a.catalog, a.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Checked %d cards: %d migrated (%d merged), %d orphaned deleted.\n",
		rep.Checked, rep.Migrated, rep.Merged, rep.Orphaned)
	return nil
}

func runStats(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	days, _ := fs.GetInt("days")
	if days < 1 {
		return fmt.Errorf("--days must be positive")
	}
	now := time.Now()
	recent, err := a.db.RecentStats(ctx, now, days)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tNEW\tREVIEWS\tAGAIN\tHARD\tGOOD\tEASY\tTIME")
	for _, s := range recent {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Date, s.NewCards, s.Reviews, s.Again, s.Hard, s.Good, s.Easy, s.StudyTime.Round(time.Second))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout)
	for _, st := range []domain.State{domain.New, domain.Learning, domain.Review, domain.Relearning} {
		fmt.Fprintf(a.stdout, "%-11s %d\n", st.String()+":", len(a.store.CardsByState(st)))
	}
	fmt.Fprintf(a.stdout, "%-11s %d\n", "due now:", len(a.store.DueCards(now, 0)))
	return nil
}
