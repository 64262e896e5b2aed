// Package e2etest runs the web application in-process and talks to it over HTTP like a device would.
package e2etest

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/myrjola/stride/internal/logging"
)

const (
	// LogAddrKey is the log attribute holding the address the server listens on.
	LogAddrKey = "addr"
	// LogDsnKey is the log attribute holding the read-write SQLite DSN.
	LogDsnKey = "sqlDsn"
)

// RunFunc has the signature of the web application's run function.
type RunFunc func(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error

// Server is a web application started by [StartServer]. It is shut down when the test finishes.
type Server struct {
	url    string
	client *Client
	db     *sql.DB
	stop   context.CancelCauseFunc
	done   chan struct{}
}

// logWatch remembers the first value logged under each of its keys.
type logWatch struct {
	mu     sync.Mutex
	keys   []string
	values map[string]string
	ready  chan struct{}
}

func newLogWatch(keys ...string) *logWatch {
	return &logWatch{
		mu:     sync.Mutex{},
		keys:   keys,
		values: make(map[string]string, len(keys)),
		ready:  make(chan struct{}),
	}
}

func (lw *logWatch) replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if !slices.Contains(lw.keys, a.Key) {
		return a
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, seen := lw.values[a.Key]; !seen {
		lw.values[a.Key] = a.Value.String()
		if len(lw.values) == len(lw.keys) {
			close(lw.ready)
		}
	}
	return a
}

func (lw *logWatch) value(key string) string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.values[key]
}

// StartServer runs the application until the test ends and waits until it answers health checks.
//
// logSink receives the server logs, usually testhelpers.NewWriter. The server must log its listen address under
// [LogAddrKey] and its database DSN under [LogDsnKey]. The DSN lets tests reach into the database with [Server.DB].
func StartServer(
	tb testing.TB,
	logSink io.Writer,
	lookupEnv func(string) (string, bool),
	run RunFunc,
) (*Server, error) {
	ctx, stop := context.WithCancelCause(tb.Context())
	done := make(chan struct{})
	watch := newLogWatch(LogAddrKey, LogDsnKey)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: watch.replaceAttr,
	})))

	go func() {
		defer close(done)
		err := run(ctx, logger, lookupEnv)
		stop(cmp.Or(err, errors.New("server stopped")))
	}()
	tb.Cleanup(func() {
		stop(nil)
		<-done
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("server exited before listening: %w", context.Cause(ctx))
	case <-watch.ready:
	}

	serverURL := "http://" + watch.value(LogAddrKey)
	client, err := NewClient(serverURL)
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return nil, fmt.Errorf("wait for ready: %w", err)
	}

	// The driver is registered by the application's sqlite package.
	db, err := sql.Open("sqlite3", watch.value(LogDsnKey))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	tb.Cleanup(func() {
		_ = db.Close()
	})

	return &Server{
		url:    serverURL,
		client: client,
		db:     db,
		stop:   stop,
		done:   done,
	}, nil
}

// Client returns the client of the server's first device. Use [Client.NewDevice] for more.
func (s *Server) Client() *Client {
	return s.client
}

func (s *Server) URL() string {
	return s.url
}

// DB is a connection to the server's database that bypasses the application.
func (s *Server) DB() *sql.DB {
	return s.db
}

// Shutdown stops the server and waits for run to return. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.stop(nil)
	<-s.done
}
