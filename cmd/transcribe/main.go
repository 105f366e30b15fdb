// Command transcribe runs one batch from the terminal with the same pipeline
// as the desktop app. Ctrl-C requests cancellation at the next file boundary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"batch-transcriber/internal/batch"
	"batch-transcriber/internal/bootstrap"
	"batch-transcriber/internal/config"
	"batch-transcriber/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		model      string
		language   string
		outputDir  string
		configFile string
		envFile    string
		checkOnly  bool
		listModels bool
	)

	flags := pflag.NewFlagSet("transcribe", pflag.ContinueOnError)
	flags.StringVarP(&model, "model", "m", "", "model tier (tiny|base|small|medium|large) or ggml model file; default from settings")
	flags.StringVarP(&language, "language", "l", "", "language code; empty or \"auto\" detects it")
	flags.StringVarP(&outputDir, "output", "o", "", "output directory; default from settings")
	flags.StringVarP(&configFile, "config", "c", "", "runtime options file (yaml or json)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file with TRANSCRIBER_* overrides")
	flags.BoolVar(&checkOnly, "check", false, "run diagnostics and exit")
	flags.BoolVar(&listModels, "models", false, "list model tiers and exit")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: transcribe [flags] FILE...\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	if listModels {
		for _, tier := range domain.ModelTiers() {
			fmt.Printf("%-8s %-10s %s\n", tier.ID, tier.SizeLabel, tier.Description)
		}
		return 0
	}

	loaderOpts := []config.LoaderOption{config.WithEnvFile(envFile)}
	if configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(configFile))
	}
	c, err := bootstrap.Load(loaderOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		return 1
	}
	log := c.Log

	settings := c.Settings.Settings()
	if checkOnly {
		report := c.Checker.Run(settings)
		for _, item := range report.Items {
			fmt.Printf("[%s] %s: %s\n", item.Status, item.Name, item.Message)
			if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
				fmt.Printf("       %s\n", item.Hint)
			}
		}
		if report.HasFailures {
			return 1
		}
		return 0
	}

	if model == "" {
		model = settings.Model
	}
	if outputDir == "" {
		outputDir = settings.OutputDir
	}
	if !flags.Changed("language") {
		language = settings.Language
	}

	failed := 0
	callbacks := batch.Callbacks{
		OnProgress: func(status string, progress float64) {
			if progress < 0 {
				fmt.Fprintf(os.Stderr, "[  --  ] %s\n", status)
				return
			}
			fmt.Fprintf(os.Stderr, "[%5.1f%%] %s\n", progress, status)
		},
		OnFileResult: func(res batch.FileResult) {
			if !res.Succeeded() {
				failed++
				fmt.Fprintf(os.Stderr, "error: %s: %v\n", res.SourcePath, res.Err)
				return
			}
			fmt.Println(res.OutputPath)
		},
		OnBatchDone: func(s batch.Summary) {
			fmt.Fprintln(os.Stderr, s.Message)
		},
	}

	orchestrator := c.Orchestrator
	if _, err := orchestrator.Start(context.Background(), batch.Request{
		Files:     flags.Args(),
		Model:     model,
		Language:  language,
		OutputDir: outputDir,
	}, callbacks); err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		return 2
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(done)
	}()

	select {
	case <-done:
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("cancelling after the current file")
		_ = orchestrator.RequestCancel()
		<-done
	}

	state := orchestrator.State()
	switch {
	case state.Status == domain.BatchStatusCancelled:
		return 130
	case failed > 0:
		return 1
	default:
		return 0
	}
}
