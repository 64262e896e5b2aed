package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/myrjola/stride/internal/e2etest"
	"github.com/myrjola/stride/internal/errors"
	"github.com/myrjola/stride/internal/logging"
	"github.com/myrjola/stride/internal/testhelpers"
	"golang.org/x/sync/errgroup"
)

const (
	expectedArgsCount       = 3
	maxConcurrentDevices    = 20
	deviceTimeout           = 2 * time.Minute
	historyDays             = 8 * 7 // two months of history per device
	completionProbability   = 70
	successRateThreshold    = 95.0
	percentageMultiplier    = 100
	defaultProgramStartDate = "2024-01-01"
)

type workoutBody struct {
	Blocks []struct {
		ID        string `json:"id"`
		Exercises []struct {
			ID       string `json:"id"`
			Category string `json:"category"`
		} `json:"exercises"`
	} `json:"blocks"`
}

// stats counts requests across all devices.
type stats struct {
	ok     atomic.Int64
	failed atomic.Int64
}

func (s *stats) record(err error) error {
	if err != nil {
		s.failed.Add(1)
		return err
	}
	s.ok.Add(1)
	return nil
}

func (s *stats) successRate() float64 {
	total := s.ok.Load() + s.failed.Load()
	if total == 0 {
		return 0
	}
	return float64(s.ok.Load()) / float64(total) * percentageMultiplier
}

// simulateDevice walks a fresh device through the program history: it sets the origin, then for every day fetches
// the workout and records completions for a random subset of its trackable exercises, and finally asks for progress.
func simulateDevice(ctx context.Context, url string, index int, s *stats, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, deviceTimeout)
	defer cancel()
	ctx = logging.WithAttrs(ctx, slog.Int("device", index))

	client, err := e2etest.NewClient(url)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	faker := gofakeit.New(int64(index))

	if err = s.record(client.DoJSON(ctx, http.MethodPut, "/api/program/origin",
		map[string]string{"start_date": defaultProgramStartDate}, http.StatusOK, nil)); err != nil {
		return fmt.Errorf("set origin: %w", err)
	}

	start, _ := time.Parse(time.DateOnly, defaultProgramStartDate)
	for i := range historyDays {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		var day workoutBody
		if err = s.record(client.GetJSON(ctx, "/api/workouts/"+date, &day)); err != nil {
			return fmt.Errorf("get workout %s: %w", date, err)
		}
		for _, b := range day.Blocks {
			for _, e := range b.Exercises {
				if e.Category == "Guidance" || faker.IntRange(1, percentageMultiplier) > completionProbability {
					continue
				}
				path := fmt.Sprintf("/api/workouts/%s/exercises/%s/completion", date, e.ID)
				body := map[string]any{"completed": true, "notes": faker.Sentence(faker.IntRange(0, 8))}
				if err = s.record(client.DoJSON(ctx, http.MethodPut, path, body, http.StatusOK, nil)); err != nil {
					return fmt.Errorf("complete %s on %s: %w", e.ID, date, err)
				}
			}
		}
	}

	today := start.AddDate(0, 0, historyDays-1).Format(time.DateOnly)
	if err = s.record(client.GetJSON(ctx, "/api/progress?today="+today, nil)); err != nil {
		return fmt.Errorf("get progress: %w", err)
	}
	if err = s.record(client.DoJSON(ctx, http.MethodDelete, "/api/device", nil, http.StatusNoContent, nil)); err != nil {
		return fmt.Errorf("forget device: %w", err)
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "device finished")
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname> <devices>")
		os.Exit(1)
	}
	hostname := os.Args[1]
	devices, err := strconv.Atoi(os.Args[2])
	if err != nil || devices < 1 {
		logger.LogAttrs(ctx, slog.LevelError, "devices must be a positive integer", slog.String("devices", os.Args[2]))
		os.Exit(1)
	}

	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))

	var (
		s     stats
		start = time.Now()
		g     errgroup.Group
	)
	g.SetLimit(maxConcurrentDevices)
	for i := range devices {
		g.Go(func() error {
			if simErr := simulateDevice(ctx, url, i, &s, logger); simErr != nil {
				// Counted in stats.
				logger.LogAttrs(ctx, slog.LevelWarn, "device failed", slog.Int("device", i), errors.SlogError(simErr))
			}
			return nil
		})
	}
	_ = g.Wait()

	rate := s.successRate()
	logger.LogAttrs(ctx, slog.LevelInfo, "stress test finished",
		slog.Int("devices", devices),
		slog.Int64("requests_ok", s.ok.Load()),
		slog.Int64("requests_failed", s.failed.Load()),
		slog.Float64("success_rate", rate),
		slog.Duration("duration", time.Since(start)))
	if rate < successRateThreshold {
		logger.LogAttrs(ctx, slog.LevelError, "success rate below threshold", slog.Float64("threshold", successRateThreshold))
		os.Exit(1)
	}
}
