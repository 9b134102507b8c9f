package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"invest-desk/models"
	"invest-desk/observability"
	"invest-desk/series"
)

// ProcessForecaster runs an external forecast program once per symbol.
// The program receives the symbol as its last argument and must print one JSON
// object with a "forecast" array on stdout, then exit 0.
type ProcessForecaster struct {
	command string
	args    []string
	timeout time.Duration
}

// NewProcessForecaster creates a ProcessForecaster
func NewProcessForecaster(command string, args []string, timeout time.Duration) *ProcessForecaster {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ProcessForecaster{
		command: command,
		args:    append([]string(nil), args...),
		timeout: timeout,
	}
}

type forecastOutput struct {
	Forecast json.RawMessage `json:"forecast"`
}

// Generate runs the forecast program for symbol and returns its points
func (f *ProcessForecaster) Generate(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	if f.command == "" {
		return nil, fmt.Errorf("%w: no forecast command configured", ErrForecastFailed)
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveForecast()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := append(append([]string(nil), f.args...), symbol)
	cmd := exec.CommandContext(ctx, f.command, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := observability.WithSymbol(symbol).With("component", "forecast")
	err := cmd.Run()
	if stderr.Len() > 0 {
		logger.Debug("forecast process stderr", "stderr", truncate(stderr.String(), 2000))
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", ErrForecastFailed, f.timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: exit code %d", ErrForecastFailed, exitErr.ExitCode())
		}
		return nil, fmt.Errorf("%w: %v", ErrForecastFailed, err)
	}

	points, err := parseForecastOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return points, nil
}

// parseForecastOutput accepts the JSON object either as the whole stdout or
// as its last JSON line, so programs may print progress lines first
func parseForecastOutput(stdout []byte) ([]models.PricePoint, error) {
	var out forecastOutput
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &out); err != nil {
		lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
		found := false
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])
			if !strings.HasPrefix(line, "{") {
				continue
			}
			if json.Unmarshal([]byte(line), &out) == nil {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: stdout is not a JSON object", ErrForecastFailed)
		}
	}

	points := series.Unique(series.Normalize(out.Forecast))
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: empty forecast", ErrForecastFailed)
	}
	return points, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
