package service

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/database"
)

// Supervisor carries a one-shot restart request from a handler to the
// process entry point, which shuts down gracefully and exits with a status
// the service manager restarts on.
type Supervisor struct {
	once sync.Once
	ch   chan struct{}
}

// NewSupervisor returns a Supervisor with no pending request.
func NewSupervisor() *Supervisor { return &Supervisor{ch: make(chan struct{})} }

// RequestRestart signals the entry point.  Repeated calls are no-ops.
func (s *Supervisor) RequestRestart() { s.once.Do(func() { close(s.ch) }) }

// Restart is closed once a restart was requested.
func (s *Supervisor) Restart() <-chan struct{} { return s.ch }

// Maintenance runs the destructive schema reset.
type Maintenance struct {
	DB         *sql.DB
	Driver     string
	Supervisor *Supervisor
	Log        *zap.Logger
}

// ResetDatabase drops and recreates every table, then asks the supervisor
// for a restart so no in-memory state survives the reset.  Callers must
// have checked ActionDatabaseReset.
func (m *Maintenance) ResetDatabase(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := database.Reset(m.DB, m.Driver); err != nil {
		return err
	}
	m.Log.Warn("database reset completed, requesting restart")
	m.Supervisor.RequestRestart()
	return nil
}
