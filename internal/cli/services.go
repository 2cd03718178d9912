package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/wire"
)

// initServices loads the configuration of the --dir project and builds the
// services. Every command that touches the store calls it first.
func initServices(cmd *cobra.Command) error {
	return wire.Init(projectDir(cmd))
}

func projectDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		return "."
	}
	return dir
}

// openInput opens path for reading, with "-" meaning stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// readFailures decodes a JSON array of failures, or a single failure object.
func readFailures(r io.Reader) ([]primary.FailureInstance, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read failures: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("no failures in input")
	}

	if strings.HasPrefix(trimmed, "{") {
		var single primary.FailureInstance
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse failure: %w", err)
		}
		return []primary.FailureInstance{single}, nil
	}

	var failures []primary.FailureInstance
	if err := json.Unmarshal(data, &failures); err != nil {
		return nil, fmt.Errorf("failed to parse failures: %w", err)
	}
	return failures, nil
}

// parseSince accepts an RFC 3339 timestamp, a date, or a duration back from now.
func parseSince(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("--since duration must be positive, got %s", value)
		}
		return now.Add(-d), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --since %q\nHint: use a duration like 24h or a date like 2024-05-01", value)
}
