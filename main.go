package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cliOptions struct {
	configPath string
	recipients string
	url        string
	dryRun     bool
	debug      bool
	headless   bool
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "bdaycart",
		Short:         "Queue birthday gift cards, one recipient per page load",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := InitLocale(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Locale initialization failed, using keys: %v\n", err)
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.recipients, "recipients", "", "Recipients file, .csv or .vcf (overrides config)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable detailed debug logging")

	run := &cobra.Command{
		Use:   "run",
		Short: "Open the browser and work through the batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts)
		},
	}
	run.Flags().StringVar(&opts.url, "url", "", "Product page URL (overrides config)")
	run.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Fill the form but never click add to cart")
	run.Flags().BoolVar(&opts.headless, "headless", false, "Run the browser headless")

	plan := &cobra.Command{
		Use:   "plan",
		Short: "Print month offset and day key for every recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPlan(cmd, opts)
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the persisted progress counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgress(cmd, opts, func(ctx context.Context, cfg *Config, p *ProgressStore) error {
				counter, err := p.Counter(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), T("progress_counter", counter, cfg.Timing.BatchMaxSize))
				return nil
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set the progress counter back to 0",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgress(cmd, opts, func(ctx context.Context, cfg *Config, p *ProgressStore) error {
				if err := p.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), T("counter_reset"))
				return nil
			})
		},
	}

	root.AddCommand(run, plan, status, reset)
	return root
}

func loadConfig(opts *cliOptions) (*Config, error) {
	config, err := LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.recipients != "" {
		config.RecipientsFile = opts.recipients
	}
	if opts.url != "" {
		config.ProductURL = opts.url
	}
	if opts.dryRun {
		config.DryRun = true
	}
	if opts.debug {
		config.DebugMode = true
	}
	if opts.headless {
		config.Headless = true
	}
	return config, nil
}

// loadRecipients picks the loader by file extension. vCard birthdays are
// resolved against today.
func loadRecipients(path string, today time.Time, logger *zap.Logger) ([]RecipientRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".vcf") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open recipients %s: %w", path, err)
		}
		defer f.Close()
		return LoadVCards(f, today, logger)
	}
	return LoadRecipientsFile(path)
}

func withProgress(cmd *cobra.Command, opts *cliOptions, fn func(context.Context, *Config, *ProgressStore) error) error {
	config, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := NewLogger(config.Logger, config.DebugMode, nil)
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	kv, closeKV, err := OpenKVStore(ctx, config.Store)
	if err != nil {
		return err
	}
	defer closeKV()

	return fn(ctx, config, NewProgressStore(kv, logger))
}

func printPlan(cmd *cobra.Command, opts *cliOptions) error {
	config, err := loadConfig(opts)
	if err != nil {
		return err
	}
	env, err := config.Location()
	if err != nil {
		return err
	}
	logger := NewLogger(config.Logger, config.DebugMode, nil)
	defer logger.Sync()

	clock, _ := newClock(config, logger)
	today := clock.Now().In(env)

	recipients, err := loadRecipients(config.RecipientsFile, today, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, rec := range recipients {
		target, err := ParseBirthday(rec.Birthday())
		if err != nil {
			fmt.Fprintf(out, "%3d  %-20s %v\n", i, rec.FirstName(), err)
			continue
		}
		key, _ := TargetDayKey(rec.Birthday(), config.Timing.ZoneOffsetHours, env)
		fmt.Fprintln(out, T("plan_row", i, rec.FirstName()+" "+rec.LastName(), rec.Birthday(), MonthOffset(today, target), key))
	}
	return nil
}

func runBatch(cmd *cobra.Command, opts *cliOptions) error {
	config, err := loadConfig(opts)
	if err != nil {
		return err
	}
	env, err := config.Location()
	if err != nil {
		return err
	}

	logger := NewLogger(config.Logger, config.DebugMode, nil)
	defer logger.Sync()

	clock, ts := newClock(config, logger)

	recipients, err := loadRecipients(config.RecipientsFile, clock.Now().In(env), logger.Named("recipients"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	kv, closeKV, err := OpenKVStore(ctx, config.Store)
	if err != nil {
		return err
	}
	defer closeKV()
	progress := NewProgressStore(kv, logger.Named("progress"))

	counter, err := progress.Counter(ctx)
	if err != nil {
		return err
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║ %-57s ║\n", T("banner_title"))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println(T("product_url", config.ProductURL))
	fmt.Println(T("recipients_loaded", len(recipients)))
	fmt.Println(T("progress_counter", counter, config.Timing.BatchMaxSize))
	if config.DryRun {
		fmt.Println(T("dry_run_mode"))
	}
	if config.DebugMode {
		fmt.Println(T("debug_mode"))
	}

	automation := NewAutomation(config, logger.Named("browser"))
	defer automation.Close()

	if err := automation.setupBrowser(); err != nil {
		return err
	}
	if err := automation.waitForLogin(ctx, cmd.InOrStdin()); err != nil {
		return err
	}

	page := automation.Page()
	sequencer := NewFormSequencer(config, page, clock, env, logger.Named("sequencer"))
	resume := NewResumeController(config, page, progress, clock, logger.Named("resume"))
	cycle := NewCycle(config, recipients, progress, sequencer, resume, logger.Named("cycle"))

	runner := NewRunner(cycle, resume, logger.Named("runner"))
	if ts != nil {
		runner.WithTimeSync(ts)
	}
	if err := runner.Run(ctx); err != nil {
		return err
	}
	fmt.Println(T("batch_complete"))

	if config.KeepBrowserOpen {
		fmt.Println("Keeping browser open for 30 seconds...")
		_ = clock.Sleep(ctx, 30*time.Second)
	}
	return nil
}

// newClock builds the clock both run and plan read "today" from. With
// sync_clock set it follows a TimeSync, which is also returned so the
// runner can refresh it; otherwise the host clock is used.
func newClock(config *Config, logger *zap.Logger) (RealClock, *TimeSync) {
	if !config.SyncClock {
		return RealClock{}, nil
	}
	ts := NewTimeSync(logger.Named("timesync"))
	if err := ts.Sync(); err != nil {
		logger.Warn("Using host clock until a resync succeeds", zap.Error(err))
	}
	return RealClock{Source: ts}, ts
}

func init() {
	// Best effort; LoadConfig reports a clearer error if this fails.
	_ = os.MkdirAll(getUserDataDir(), 0755)
}

func getUserDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./bdaycart-data"
	}
	return filepath.Join(home, ".bdaycart")
}
