package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bridgemon/internal/alert"
	"bridgemon/internal/config"
	"bridgemon/internal/monitor"
)

func runEvents(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, l1, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	start := cfg.StartingBlock
	if start == nil {
		start = new(uint64)
	}

	// Only the window and deposit cache are used; alerts are never raised here.
	mon, err := monitor.New(monitor.Config{
		ChainID:       cfg.ChainID,
		StartingBlock: start,
		EndingBlock:   cfg.EndingBlock,
	}, l1, alert.NewLogSink(logger), logger)
	if err != nil {
		return err
	}
	if err := mon.Update(ctx); err != nil {
		return err
	}
	infos, err := mon.EventInfo()
	if err != nil {
		return err
	}

	writer, err := newJSONLWriter(out)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if err := writer.Write(info); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	window, _ := mon.Window()
	logger.Info("events complete",
		zap.Uint64("from", window.From),
		zap.Uint64("to", window.To),
		zap.Int("events", len(infos)),
		zap.String("out", out),
	)
	return nil
}

type jsonlWriter struct {
	closer io.Closer
	writer *bufio.Writer
}

// newJSONLWriter truncates path, or writes to stdout when path is "-".
func newJSONLWriter(path string) (*jsonlWriter, error) {
	if path == "" || path == "-" {
		return &jsonlWriter{writer: bufio.NewWriter(os.Stdout)}, nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		closer: file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return err
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
