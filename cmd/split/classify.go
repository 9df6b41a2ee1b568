// Package main contains the split CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-bill-must-split/internal/cli"
	"github.com/Veraticus/the-bill-must-split/internal/config"
	"github.com/Veraticus/the-bill-must-split/internal/engine"
	"github.com/Veraticus/the-bill-must-split/internal/metrics"
	"github.com/Veraticus/the-bill-must-split/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <receipt.json>...",
		Short: "Classify the lines of one or more receipts",
		Long: `Classify every line of the given receipt files and store the results.

A receipt file is JSON of the form:
  {"merchant": "Burger Barn", "type": "restaurant", "total": "25.60",
   "items": [{"name": "2 Burgers", "price": "20.00"}, {"name": "Tax", "price": "1.60"}]}

Examples:
  split classify dinner.json                 # Classify with the selected engine
  split classify --engine batch *.json       # One LLM call per receipt
  split classify --no-llm dinner.json        # Local heuristics only
  split classify --dry-run dinner.json       # Do not store the result`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().StringP("engine", "e", "", "engine to use (chain, batch); overrides the stored selection")
	cmd.Flags().Int("budget", 0, "maximum LLM calls per receipt")
	cmd.Flags().Int("concurrency", 0, "lines classified in parallel by the chain engine")
	cmd.Flags().Bool("no-llm", false, "never call the LLM")
	cmd.Flags().Bool("dry-run", false, "classify without storing the result")
	cmd.Flags().BoolP("quiet", "q", false, "do not print the receipt reports")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile")

	_ = viper.BindPFlag("metrics.file", cmd.Flags().Lookup("metrics-file"))

	return cmd
}

type classifyResult struct {
	receipt *model.ClassifiedReceipt
	rctx    model.ReceiptContext
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStorage(store)

	engineFlag, _ := flags.GetString("engine")
	kind, err := resolveEngineKind(ctx, store, engineFlag)
	if err != nil {
		return err
	}
	if _, err := parseEngineKind(kind); err != nil {
		return err
	}
	cfg, err := config.LoadEngineConfig(viper.GetViper(), kind)
	if err != nil {
		return err
	}
	if flags.Changed("budget") {
		cfg.LLMBudget, _ = flags.GetInt("budget")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if noLLM, _ := flags.GetBool("no-llm"); noLLM {
		cfg.EnableLLM = false
	}
	dryRun, _ := flags.GetBool("dry-run")
	quiet, _ := flags.GetBool("quiet")

	client, cache, llmCfg, err := newGeminiClient()
	if err != nil {
		return err
	}
	defer cache.Close()

	_, keys := keyProvider()
	if cfg.EnableLLM && !keys.HasKey() {
		slog.Warn("No Gemini API key configured, classifying with local rules only",
			"hint", "run 'split key set'")
	}

	collector := metrics.NewCollector()
	opts := []engine.Option{
		engine.WithLogger(slog.Default()),
		engine.WithCache(cache),
		engine.WithRecorder(collector),
		engine.WithLLMConfig(llmCfg),
	}
	pattern, err := config.PatternStrategy(viper.GetViper())
	if err != nil {
		return err
	}
	if pattern != nil {
		opts = append(opts, engine.WithPatternStrategy(pattern))
	}
	eng := engine.New(client, keys, opts...)

	var saved atomic.Int32
	handler := cli.NewInterruptHandler(os.Stderr)
	ctx = handler.HandleInterrupts(ctx, func() string {
		return fmt.Sprintf("%d of %d receipts classified and saved", saved.Load(), len(args))
	})

	var bar *progressbar.ProgressBar
	if len(args) > 1 {
		bar = newProgressBar(len(args), string(cfg.Kind))
	}

	slog.Info("Classifying receipts", "count", len(args), "engine", cfg.Kind, "llm", cfg.EnableLLM)

	results := make([]classifyResult, 0, len(args))
	var failures []string
	for _, path := range args {
		if ctx.Err() != nil {
			break
		}

		result, err := classifyFile(ctx, eng, cfg, path)
		if err != nil {
			if handler.WasInterrupted() {
				break
			}
			slog.Error("Failed to classify receipt", "file", path, "error", err)
			failures = append(failures, filepath.Base(path))
		} else {
			if !dryRun {
				if err := store.SaveReceipt(ctx, result.receipt, result.rctx); err != nil {
					return fmt.Errorf("failed to save %s: %w", path, err)
				}
			}
			saved.Add(1)
			results = append(results, result)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	}

	slog.Debug("Classification finished", "receipts", len(results), "cached_responses", cache.Len())

	if !quiet {
		for _, r := range results {
			fmt.Println(cli.RenderReceipt(r.receipt, r.rctx.MerchantName)) //nolint:forbidigo // User-facing output
		}
	}

	if path := config.MetricsFile(viper.GetViper()); path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			return err
		}
		slog.Debug("Wrote metrics", "file", path)
	}

	if handler.WasInterrupted() {
		return ctx.Err()
	}
	if len(failures) > 0 {
		return fmt.Errorf("failed to classify %d of %d receipts: %s", len(failures), len(args), strings.Join(failures, ", "))
	}

	if !quiet && !dryRun && len(results) > 0 {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved %d receipts", len(results)))) //nolint:forbidigo // User-facing output
	}
	return nil
}

func classifyFile(ctx context.Context, eng *engine.Engine, cfg engine.Config, path string) (classifyResult, error) {
	items, rctx, err := loadReceiptFile(path)
	if err != nil {
		return classifyResult{}, err
	}

	start := time.Now()
	receipt, err := eng.Classify(ctx, items, rctx, cfg)
	if err != nil {
		return classifyResult{}, err
	}
	slog.Debug("Classified file", "file", path, "duration", time.Since(start))

	return classifyResult{receipt: receipt, rctx: rctx}, nil
}

func newProgressBar(total int, kind string) *progressbar.ProgressBar {
	desc := "[cyan][bold]Classifying receipts...[reset]"
	if kind != "" {
		desc = fmt.Sprintf("[cyan][bold]Classifying receipts with %s engine...[reset]", kind)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(os.Stderr)
		}),
	)
}
