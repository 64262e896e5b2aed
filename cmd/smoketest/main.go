package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/myrjola/stride/internal/e2etest"
	"github.com/myrjola/stride/internal/errors"
	"github.com/myrjola/stride/internal/logging"
	"github.com/myrjola/stride/internal/testhelpers"
)

type workoutSummary struct {
	Date string `json:"date"`
	Meta struct {
		Week  int    `json:"week"`
		Phase string `json:"phase"`
		Day   string `json:"day"`
	} `json:"meta"`
	Blocks []struct {
		ID string `json:"id"`
	} `json:"blocks"`
}

// TestToday fetches today's workout as a fresh device and forgets the device afterwards so that smoke tests leave
// no rows behind.
func TestToday(ctx context.Context, client *e2etest.Client, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	var day workoutSummary
	if err := client.GetJSON(ctx, "/api/workouts/today", &day); err != nil {
		return fmt.Errorf("get today's workout: %w", err)
	}
	if len(day.Blocks) == 0 {
		return errors.New("today's workout has no blocks", slog.String("date", day.Date))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "fetched today's workout",
		slog.String("date", day.Date),
		slog.String("phase", day.Meta.Phase),
		slog.String("day", day.Meta.Day),
		slog.Int("blocks", len(day.Blocks)))

	if err := client.DoJSON(ctx, http.MethodDelete, "/api/device", nil, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("forget device: %w", err)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		client   *e2etest.Client
		err      error
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestToday(ctx, client, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error fetching today's workout", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
	os.Exit(0)
}
