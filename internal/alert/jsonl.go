package alert

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONLSink appends alerts to a JSONL file.
type JSONLSink struct {
	path string
	mu   sync.Mutex
}

func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

type jsonlRecord struct {
	Alert
	EmittedAt string `json:"emitted_at"`
}

// Send appends one alert as a JSON line.
func (s *JSONLSink) Send(_ context.Context, alert Alert) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create alerts dir: %w", err)
		}
	}

	line, err := json.Marshal(jsonlRecord{Alert: alert, EmittedAt: time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open alerts file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write alert: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush alerts: %w", err)
	}
	return nil
}
