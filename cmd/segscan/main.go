// Command segscan opens a v3 segment directory, prints its schema, and
// streams it as Arrow record batches. It is an external collaborator of
// the segment core, not part of it: it only imports the core's public API
// (segment.Open, segment.Scan).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/wirybeaver/datafusion-pinot/ctl"
	"github.com/wirybeaver/datafusion-pinot/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var batchSize int
	var printValues bool
	var verbose bool
	var logFile string

	cmd := &cobra.Command{
		Use:   "segscan <segment-dir>",
		Short: "Print schema and scan a v3 segment directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctl.ScanConfig{BatchSize: batchSize, LogFile: logFile, Verbose: verbose}
			if configPath != "" {
				if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
					return fmt.Errorf("decoding config %s: %w", configPath, err)
				}
				// Flags take precedence over the config file.
				if cmd.Flags().Changed("batch-size") {
					cfg.BatchSize = batchSize
				}
				if logFile != "" {
					cfg.LogFile = logFile
				}
				if verbose {
					cfg.Verbose = true
				}
			}

			log, closeLog, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			c := ctl.NewSegScanCommand(log)
			c.Path = args[0]
			c.PrintValues = printValues
			if cfg.BatchSize > 0 {
				c.BatchSize = cfg.BatchSize
			}
			if len(cfg.Columns) > 0 {
				c.Columns = cfg.Columns
			}
			c.ProgressInterval = time.Duration(cfg.ProgressInterval)

			return c.Run(context.Background())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file (batch-size, columns, log-file, verbose)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 4096, "rows per produced batch")
	cmd.Flags().BoolVar(&printValues, "values", false, "print decoded column values, not just row counts")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file instead of discarding them; reopened on SIGHUP")

	return cmd
}

// setupLogger builds the Logger for a scan run. With no log file configured
// it falls back to NopLogger (or a stderr logger under --verbose); with one
// configured it opens a reopenable FileWriter and registers a SIGHUP handler
// so the file can be rotated out from under a long-running scan without
// restarting it.
func setupLogger(cfg ctl.ScanConfig) (logger.Logger, func(), error) {
	if cfg.LogFile == "" {
		if cfg.Verbose {
			return logger.NewVerboseLogger(os.Stderr), func() {}, nil
		}
		return logger.NopLogger, func() {}, nil
	}

	fw, err := logger.NewFileWriter(cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.LogFile, err)
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sighup:
				if err := fw.Reopen(); err != nil {
					fmt.Fprintf(os.Stderr, "segscan: reopen %s: %s\n", cfg.LogFile, err)
				}
			case <-done:
				signal.Stop(sighup)
				return
			}
		}
	}()

	var log logger.Logger
	if cfg.Verbose {
		log = logger.NewVerboseLogger(fw)
	} else {
		log = logger.NewStandardLogger(fw)
	}

	closeFn := func() {
		close(done)
		fw.Close()
	}
	return log, closeFn, nil
}
