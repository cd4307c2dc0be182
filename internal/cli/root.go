// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the younger-fetch command line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

// RootOpts holds global CLI options.
type RootOpts struct {
	Token   string
	JSONOut bool
	Quiet   bool
	Verbose bool
	Config  string
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &RootOpts{}
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := &cobra.Command{
		Use:           "younger-fetch",
		Short:         "Acquire Hugging Face model snapshots for the Younger dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVarP(&ro.Token, "token", "t", "", "Hugging Face access token (also reads HF_TOKEN env)")
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit machine-readable JSON events")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Quiet mode (minimal logs)")
	root.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Verbose logs (per-file detail)")
	root.PersistentFlags().StringVar(&ro.Config, "config", "", "Path to config file (JSON or YAML)")

	fetchCmd := newFetchCmd(ctx, ro)
	root.AddCommand(fetchCmd)
	root.AddCommand(newIDsCmd(ctx, ro))
	root.AddCommand(newServeCmd(ro))
	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newConfigCmd())

	// Fetch is the default command when no subcommand is given.
	root.RunE = fetchCmd.RunE
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

// loadConfig resolves the effective config for a command: file + env, then
// the global token flag on top.
func loadConfig(ro *RootOpts) (Config, error) {
	cfg, err := LoadConfig(ro.Config)
	if err != nil {
		return cfg, err
	}
	if tok := strings.TrimSpace(ro.Token); tok != "" {
		cfg.Token = tok
	}
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

var (
	statusDone = color.New(color.FgGreen).SprintFunc()
	statusSkip = color.New(color.FgYellow).SprintFunc()
	statusFail = color.New(color.FgRed).SprintFunc()
)

// textProgress returns a plain line-oriented progress handler. With verbose
// set, per-file events are printed too.
func textProgress(verbose bool) hfhub.ProgressFunc {
	return func(ev hfhub.ProgressEvent) {
		switch ev.Event {
		case "model_start":
			fmt.Printf("= %s: %s\n", ev.Message, ev.Repo)
		case "model_skip":
			fmt.Printf("%s %s (%s)\n", statusSkip("skip:"), ev.Repo, ev.Message)
		case "model_done":
			fmt.Printf("%s %s\n", statusDone("done:"), ev.Repo)
		case "model_error":
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", statusFail("fail:"), ev.Repo, ev.Message)
		case "run_done":
			fmt.Println(ev.Message)
		case "retry":
			fmt.Printf("retry %s (attempt %d): %s\n", ev.Path, ev.Attempt, ev.Message)
		case "error":
			fmt.Fprintf(os.Stderr, "%s %s\n", statusFail("error:"), ev.Message)
		case "file_start":
			if verbose {
				fmt.Printf("  downloading: %s (%d bytes)\n", ev.Path, ev.Total)
			}
		case "file_done":
			if verbose {
				if strings.HasPrefix(ev.Message, "skip") {
					fmt.Printf("  %s %s %s\n", statusSkip("skip:"), ev.Path, ev.Message)
				} else {
					fmt.Printf("  %s %s\n", statusDone("done:"), ev.Path)
				}
			}
		}
	}
}

// jsonProgress returns a JSON-lines progress handler.
func jsonProgress(w io.Writer) hfhub.ProgressFunc {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	var mu sync.Mutex
	return func(ev hfhub.ProgressEvent) {
		mu.Lock()
		_ = enc.Encode(ev)
		mu.Unlock()
	}
}
