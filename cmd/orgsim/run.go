package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	persistlog "github.com/openspawn/openspawn-sub002/internal/persistence/log"
	"github.com/openspawn/openspawn-sub002/internal/persistence/indexdb"
	"github.com/openspawn/openspawn-sub002/internal/persistence/snapshot"
	"github.com/openspawn/openspawn-sub002/internal/sim/engine"
	"github.com/openspawn/openspawn-sub002/internal/sim/playback"
	"github.com/openspawn/openspawn-sub002/internal/telemetry"
)

type runOptions struct {
	*rootOptions

	Scenario      string
	Seed          int64
	Start         string
	TuningPath    string
	Ticks         uint64
	Duration      time.Duration
	Speed         float64
	DataDir       string
	RunID         string
	SnapshotEvery int
	DisableDB     bool
	Metrics       bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation and record tick, audit and snapshot logs",
		Long: `Run a simulation.

With --duration the run plays in real time through the playback controller at
--speed ticks per second. Otherwise --ticks are stepped as fast as possible.
Everything needed to replay the run is written under <data>/runs/<run-id>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulation(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Scenario, "scenario", "fresh", "built-in scenario name, fixture JSON path or .snap.zst snapshot")
	f.Int64Var(&opts.Seed, "seed", root.env.Seed, "random seed [$ORGSIM_SEED]")
	f.StringVar(&opts.Start, "start", "", "simulated start time, RFC3339 (default: now, truncated to the hour)")
	f.StringVar(&opts.TuningPath, "tuning", root.env.TuningPath, "path to tuning.yaml, built-in tuning when empty [$ORGSIM_TUNING]")
	f.Uint64Var(&opts.Ticks, "ticks", 100, "ticks to step when --duration is not set")
	f.DurationVar(&opts.Duration, "duration", 0, "play in real time for this long")
	f.Float64Var(&opts.Speed, "speed", 1, "ticks per second while playing")
	f.StringVar(&opts.DataDir, "data", root.env.DataDir, "runtime data directory [$ORGSIM_DATA_DIR]")
	f.StringVar(&opts.RunID, "run-id", "", "run directory name (default: derived from wall clock)")
	f.IntVar(&opts.SnapshotEvery, "snapshot-every", 100, "write a snapshot every N ticks (0 disables)")
	f.BoolVar(&opts.DisableDB, "disable-db", root.env.DisableDB, "skip the sqlite index [$ORGSIM_DISABLE_DB]")
	f.BoolVar(&opts.Metrics, "metrics", false, "print collected metrics when the run ends")
	return cmd
}

type runSummary struct {
	RunDir string
	Tick   uint64
	Digest string
	Kinds  map[engine.Kind]int
}

func runSimulation(ctx context.Context, opts *runOptions, stdout, stderr io.Writer) error {
	logger := opts.logger(stderr)

	tune, err := loadTuning(opts.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}
	sc, err := loadScenario(opts.Scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	start, err := parseStart(opts.Start)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	runID := opts.RunID
	if runID == "" {
		runID = time.Now().UTC().Format("20060102T150405Z")
	}
	runDir := filepath.Join(opts.DataDir, "runs", runID)
	if err := writeManifest(runDir, runManifest{
		Source:    opts.Scenario,
		Seed:      opts.Seed,
		StartTime: start,
		Tuning:    tune,
		Scenario:  sc,
	}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	var idx *indexdb.SQLiteIndex
	if !opts.DisableDB {
		idx, err = indexdb.OpenSQLite(indexPath(runDir))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer func() {
			if st := idx.Stats(); st.DropTickTotal+st.DropAuditTotal+st.DropSnapshotTotal > 0 {
				logger.Warn("index dropped rows", "ticks", st.DropTickTotal, "audits", st.DropAuditTotal, "snapshots", st.DropSnapshotTotal)
			}
			if err := idx.Close(); err != nil {
				logger.Error("close index", "err", err)
			}
		}()
		if err := idx.UpsertRunConfig(sc.Name, opts.Seed, start, tune); err != nil {
			logger.Warn("index: upsert run config", "err", err)
		}
	}

	tickLog := persistlog.NewTickLogger(runDir)
	auditLog := persistlog.NewAuditLogger(runDir)
	defer tickLog.Close()
	defer auditLog.Close()

	var prov *telemetry.Provider
	var metrics *telemetry.Metrics
	if opts.Metrics {
		prov, err = telemetry.NewProvider()
		if err != nil {
			return err
		}
		defer prov.Shutdown(context.Background())
		metrics = prov.Metrics
	}

	snapCh := make(chan engine.Snapshot, 4)
	var snapWG sync.WaitGroup
	snapWG.Add(1)
	go func() {
		defer snapWG.Done()
		for s := range snapCh {
			persistSnapshot(runDir, s, idx, logger)
		}
	}()

	eng, err := engine.New(engine.Config{
		Seed:               opts.Seed,
		StartTime:          start,
		Tuning:             tune,
		Logger:             logger,
		TickLogger:         multiTickLogger{a: tickLog, b: idx},
		AuditLogger:        multiAuditLogger{a: auditLog, b: idx},
		SnapshotSink:       snapCh,
		SnapshotEveryTicks: opts.SnapshotEvery,
		Metrics:            metrics,
	}, sc)
	if err != nil {
		close(snapCh)
		snapWG.Wait()
		return err
	}

	sum := runSummary{RunDir: runDir, Kinds: map[engine.Kind]int{}}
	var kindsMu sync.Mutex
	unsubscribe := eng.OnEvent(func(ev engine.Event) {
		kindsMu.Lock()
		sum.Kinds[ev.Kind]++
		kindsMu.Unlock()
	})

	if opts.Duration > 0 {
		ctrl := playback.NewController(eng, playback.RealScheduler{}, playback.WithLogger(logger))
		if err := ctrl.SetSpeed(opts.Speed); err != nil {
			unsubscribe()
			close(snapCh)
			snapWG.Wait()
			return &exitError{code: exitUsage, err: err}
		}
		playCtx, cancel := context.WithTimeout(ctx, opts.Duration)
		ctrl.Run(playCtx)
		cancel()
	} else {
		for i := uint64(0); i < opts.Ticks; i++ {
			if ctx.Err() != nil {
				logger.Info("interrupted", "tick", eng.CurrentTick())
				break
			}
			eng.Tick()
		}
	}
	unsubscribe()

	// Final state always lands on disk, even off the snapshot cadence.
	final := eng.ExportSnapshot()
	if opts.SnapshotEvery <= 0 || final.Tick == 0 || final.Tick%uint64(opts.SnapshotEvery) != 0 {
		snapCh <- final
	}
	close(snapCh)
	snapWG.Wait()

	sum.Tick = final.Tick
	sum.Digest = final.Digest
	kindsMu.Lock()
	writeRunSummary(stdout, sum, eng)
	kindsMu.Unlock()

	if prov != nil {
		fmt.Fprintln(stdout, "metrics:")
		if err := prov.WriteSummary(context.Background(), stdout); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

func persistSnapshot(runDir string, s engine.Snapshot, idx *indexdb.SQLiteIndex, logger *slog.Logger) {
	snap := snapshot.FromEngine(s)
	path := snapshot.Path(runDir, s.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Error("snapshot write", "tick", s.Tick, "err", err)
		return
	}
	idx.RecordSnapshot(path, snap)
	logger.Debug("snapshot written", "tick", s.Tick, "path", path)
}

func writeRunSummary(w io.Writer, sum runSummary, src engine.Source) {
	fmt.Fprintf(w, "run=%s tick=%d simulated=%s digest=%s\n",
		sum.RunDir, sum.Tick, src.SimulatedTime().Format(time.RFC3339), sum.Digest)
	fmt.Fprintf(w, "agents=%d tasks=%d credits=%d events=%d messages=%d\n",
		len(src.Agents()), len(src.Tasks()), len(src.Credits()), len(src.Events()), len(src.Messages()))

	kinds := make([]string, 0, len(sum.Kinds))
	for k := range sum.Kinds {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-22s %d\n", k, sum.Kinds[engine.Kind(k)])
	}
}

func parseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(time.Hour), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	return t.UTC(), nil
}

func indexPath(runDir string) string {
	return filepath.Join(runDir, "index", "run.sqlite")
}

type multiTickLogger struct {
	a engine.TickLogger
	b engine.TickLogger
}

func (m multiTickLogger) WriteTick(entry engine.TickLogEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return err
}

type multiAuditLogger struct {
	a engine.AuditLogger
	b engine.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry engine.AuditEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return err
}
