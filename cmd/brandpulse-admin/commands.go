package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/brandpulse/config"
	"github.com/target/brandpulse/internal/bootstrap"
	"github.com/target/brandpulse/internal/data"
	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/service"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
	defaultDrainCycles      = 100
	defaultDeadLetterLimit  = 50
)

type migrateOptions struct {
	Timeout time.Duration
}

type rollupOptions struct {
	BrandID  int64
	Snapshot bool
	JSON     bool
}

type deadLetterOptions struct {
	Limit int
}

type drainOptions struct {
	MaxCycles int
	Wait      time.Duration
	Timeout   time.Duration
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runTrigger(cmdCtx *commandContext, args []string) error {
	jobType, err := parseTriggerArgs(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	rt, err := openRuntime(ctx, cmdCtx, config.ServiceModeScheduler)
	if err != nil {
		return err
	}
	defer rt.Close()

	triggers := rt.Services.Triggers
	req := model.TriggerRequest{Source: model.TriggerSourceManual}
	switch jobType {
	case model.JobTypeUpdateStatistics:
		res, trigErr := triggers.TriggerUpdateStatistics(ctx, req)
		if trigErr != nil {
			return trigErr
		}
		return writef(cmdCtx.Out, "enqueued=%d failed=%d skipped=%d\n", res.Enqueued, res.Failed, res.Skipped)
	case model.JobTypeCleanup:
		id, trigErr := triggers.TriggerCleanup(ctx, req)
		if trigErr != nil {
			return trigErr
		}
		return writef(cmdCtx.Out, "enqueued %s message %s\n", jobType, id)
	default:
		id, trigErr := triggers.TriggerAnalytics(ctx, req)
		if trigErr != nil {
			return trigErr
		}
		return writef(cmdCtx.Out, "enqueued %s message %s\n", jobType, id)
	}
}

func runRollup(cmdCtx *commandContext, args []string) error {
	opts, err := parseRollupFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	rt, err := openRuntime(ctx, cmdCtx, config.ServiceModeScheduler)
	if err != nil {
		return err
	}
	defer rt.Close()

	var rollup *model.BrandRollup
	if opts.Snapshot {
		if rt.Services.Snapshots == nil {
			return errors.New("snapshots require redis (REDIS_ENABLED=true)")
		}
		rollup, err = rt.Services.Snapshots.Load(ctx, opts.BrandID)
	} else {
		rollup, err = rt.Services.BrandStatistics.Aggregate(ctx, opts.BrandID)
	}
	if err != nil {
		return err
	}
	if rollup == nil {
		return writef(cmdCtx.Out, "no snapshot for brand %d\n", opts.BrandID)
	}

	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(rollup)
	}
	return printRollup(cmdCtx.Out, rollup)
}

func runQueueStatus(cmdCtx *commandContext, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("queue-status takes no arguments, got %q", strings.Join(args, " "))
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	rt, err := openRuntime(ctx, cmdCtx, config.ServiceModeScheduler)
	if err != nil {
		return err
	}
	defer rt.Close()

	status := model.QueueStatus{
		Transport:     rt.Services.Queue.Name,
		ScheduledJobs: rt.Services.Triggers.Status(),
	}

	if reader := rt.Services.Queue.Depth; reader != nil {
		n, depthErr := reader.MessagesInQueue(ctx)
		if depthErr != nil {
			return fmt.Errorf("read queue depth: %w", depthErr)
		}
		status.MessagesInQueue = &n
	}

	var depth *data.QueueDepth
	if rt.Services.Queue.Postgres != nil {
		d, depthErr := rt.Services.Queue.Postgres.Depth(ctx)
		if depthErr != nil {
			return fmt.Errorf("read queue depth: %w", depthErr)
		}
		depth = &d
	}

	return printQueueStatus(cmdCtx.Out, status, depth)
}

func runDeadLetters(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeadLetterFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	rt, err := openRuntime(ctx, cmdCtx, config.ServiceModeScheduler)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.Services.Queue.Postgres == nil {
		return fmt.Errorf("dead letters of the %s transport live in the broker", rt.Services.Queue.Name)
	}
	letters, err := rt.Services.Queue.Postgres.ListDeadLetters(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return printDeadLetters(cmdCtx.Out, letters)
}

func runDrain(cmdCtx *commandContext, args []string) error {
	opts, err := parseDrainFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmdCtx.Config.Consumer.Wait = opts.Wait
	rt, err := openRuntime(ctx, cmdCtx, config.ServiceModeConsumer)
	if err != nil {
		return err
	}
	defer rt.Close()

	total, err := drain(ctx, rt.Services.Consumer, opts.MaxCycles)
	if analysis := rt.Services.QuestionAnalysis; analysis != nil {
		analysis.Wait()
	}
	if printErr := writef(cmdCtx.Out, "received=%d processed=%d failed=%d dead_lettered=%d\n",
		total.Received, total.Processed, total.Failed, total.DeadLettered); printErr != nil {
		return errors.Join(err, printErr)
	}
	return err
}

type cycler interface {
	Cycle(ctx context.Context) (service.CycleResult, error)
}

// drain runs cycles until one receives nothing or maxCycles is reached.
func drain(ctx context.Context, c cycler, maxCycles int) (service.CycleResult, error) {
	var total service.CycleResult
	for range maxCycles {
		res, err := c.Cycle(ctx)
		total.Received += res.Received
		total.Processed += res.Processed
		total.Failed += res.Failed
		total.DeadLettered += res.DeadLettered
		if err != nil {
			return total, err
		}
		if res.Received == 0 && !res.Skipped {
			return total, nil
		}
	}
	return total, nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseTriggerArgs(args []string) (model.JobType, error) {
	if len(args) != 1 {
		return "", errors.New("usage: trigger <update-statistics|cleanup|analytics>")
	}
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "update-statistics", "update_statistics":
		return model.JobTypeUpdateStatistics, nil
	case "cleanup":
		return model.JobTypeCleanup, nil
	case "analytics":
		return model.JobTypeAnalytics, nil
	default:
		return "", fmt.Errorf("unknown job %q (valid: update-statistics, cleanup, analytics)", args[0])
	}
}

func parseRollupFlags(args []string) (rollupOptions, error) {
	fs := flag.NewFlagSet("rollup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := rollupOptions{}
	fs.Int64Var(&opts.BrandID, "brand", 0, "Brand ID to aggregate")
	fs.BoolVar(&opts.Snapshot, "snapshot", false, "Read the last ANALYTICS snapshot from Redis instead of aggregating")
	fs.BoolVar(&opts.JSON, "json", false, "Print the rollup as JSON")

	if err := fs.Parse(args); err != nil {
		return rollupOptions{}, err
	}
	if opts.BrandID <= 0 {
		return rollupOptions{}, errors.New("--brand must be a positive brand id")
	}
	return opts, nil
}

func parseDeadLetterFlags(args []string) (deadLetterOptions, error) {
	fs := flag.NewFlagSet("dead-letters", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := deadLetterOptions{}
	fs.IntVar(&opts.Limit, "limit", defaultDeadLetterLimit, "Maximum number of dead letters to list")

	if err := fs.Parse(args); err != nil {
		return deadLetterOptions{}, err
	}
	if opts.Limit <= 0 {
		return deadLetterOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func parseDrainFlags(args []string) (drainOptions, error) {
	fs := flag.NewFlagSet("drain", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := drainOptions{}
	fs.IntVar(&opts.MaxCycles, "max-cycles", defaultDrainCycles, "Maximum consumer cycles to run")
	fs.DurationVar(&opts.Wait, "wait", time.Second, "Long-poll wait per receive")
	fs.DurationVar(&opts.Timeout, "timeout", 30*time.Minute, "Overall drain deadline")

	if err := fs.Parse(args); err != nil {
		return drainOptions{}, err
	}
	if opts.MaxCycles <= 0 {
		return drainOptions{}, errors.New("--max-cycles must be greater than zero")
	}
	if opts.Wait < 0 {
		return drainOptions{}, errors.New("--wait must not be negative")
	}
	if opts.Timeout <= 0 {
		return drainOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func printRollup(w io.Writer, r *model.BrandRollup) error {
	if err := writef(w, "Brand %d (%s), %d questions\n\n", r.BrandID, r.BrandName, r.QuestionsCount); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "PROVIDER\tBRAND\tPOSITIONING\tDENSITY\n"); err != nil {
		return err
	}
	for _, p := range []model.Provider{model.ProviderChatGPT, model.ProviderGemini} {
		pr := r.Statistics.For(p)
		for _, name := range sortedKeys(pr.Positioning) {
			if err := writef(tw, "%s\t%s\t%.2f\t%.2f\n", p, name, pr.Positioning[name], pr.Density[name]); err != nil {
				return err
			}
		}
		if err := writef(tw, "%s\t(average)\t%.2f\t\n", p, pr.AveragePositioning); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printQueueStatus(w io.Writer, status model.QueueStatus, depth *data.QueueDepth) error {
	if err := writef(w, "Transport: %s\n", status.Transport); err != nil {
		return err
	}
	switch {
	case depth != nil:
		if err := writef(w, "Visible: %d  In flight: %d  Dead letters: %d\n",
			depth.Visible, depth.InFlight, depth.DeadLetters); err != nil {
			return err
		}
	case status.MessagesInQueue != nil:
		if err := writef(w, "Messages in queue: %d\n", *status.MessagesInQueue); err != nil {
			return err
		}
	}
	if err := writef(w, "\n"); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "TRIGGER\tSCHEDULE\tJOB\tNEXT RUN\tLAST RUN\n"); err != nil {
		return err
	}
	for _, j := range status.ScheduledJobs {
		last := "-"
		if j.LastRun != nil {
			last = j.LastRun.UTC().Format(time.RFC3339)
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			j.Name, j.Schedule, j.JobType, j.NextRun.UTC().Format(time.RFC3339), last); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printDeadLetters(w io.Writer, letters []model.DeadLetter) error {
	if len(letters) == 0 {
		return writef(w, "no dead letters\n")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "ID\tMESSAGE\tRECEIVES\tAT\tREASON\n"); err != nil {
		return err
	}
	for _, l := range letters {
		if err := writef(tw, "%d\t%s\t%d\t%s\t%s\n",
			l.ID, l.MessageID, l.ReceiveCount, l.DeadLetteredAt.UTC().Format(time.RFC3339), l.Reason); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
