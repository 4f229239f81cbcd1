package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/dvloznov/finance-migrator/internal/storage"
	"github.com/dvloznov/finance-migrator/internal/validation"
	"github.com/rs/zerolog"
)

// AlertFunc receives every alert a monitor pass produces.
type AlertFunc func(Alert)

// Monitor periodically runs passive safety checks and reports findings
// through the alert callback. A critical data-corruption alert auto-triggers
// the supervisor's emergency rollback; every other alert is report-only.
// Checks run to completion, then the monitor sleeps until the next tick, so
// it never blocks the backup writer.
type Monitor struct {
	sup      *Supervisor
	interval time.Duration
	onAlert  AlertFunc
	log      zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewMonitor creates a monitor over the supervisor. onAlert may be nil.
func NewMonitor(sup *Supervisor, interval time.Duration, onAlert AlertFunc, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if onAlert == nil {
		onAlert = func(Alert) {}
	}
	return &Monitor{
		sup:      sup,
		interval: interval,
		onAlert:  onAlert,
		log:      log,
	}
}

// Start launches the periodic loop. Returns an error if already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("safety monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.loop(runCtx)

	m.log.Info().Dur("interval", m.interval).Msg("Safety monitor started")
	return nil
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Info().Msg("Safety monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runPass(ctx)
		}
	}
}

// runPass executes one full check cycle.
func (m *Monitor) runPass(ctx context.Context) {
	for _, alert := range m.CheckOnce(ctx) {
		m.dispatch(ctx, alert)
	}
}

// CheckOnce runs the passive checks a single time and returns the alerts.
// Exposed so operators can probe on demand between ticks.
func (m *Monitor) CheckOnce(ctx context.Context) []Alert {
	var alerts []Alert
	if a := m.checkStorageHeadroom(); a != nil {
		alerts = append(alerts, *a)
	}
	if a := m.checkLegacyIntegrity(ctx); a != nil {
		alerts = append(alerts, *a)
	}
	if a := m.checkBackupHealth(ctx); a != nil {
		alerts = append(alerts, *a)
	}
	return alerts
}

func (m *Monitor) dispatch(ctx context.Context, alert Alert) {
	logEvent := m.log.Warn()
	if alert.Severity == AlertCritical {
		logEvent = m.log.Error()
	}
	logEvent.
		Str("category", string(alert.Category)).
		Str("severity", string(alert.Severity)).
		Msg(alert.Message)

	m.onAlert(alert)

	if alert.Severity == AlertCritical && alert.Category == AlertDataCorruption {
		m.log.Error().Msg("Critical data corruption detected, triggering emergency rollback")
		result := m.sup.EmergencyRollback(ctx)
		if !result.Success {
			m.log.Error().Str("message", result.Message).Msg("Automatic emergency rollback failed")
		}
	}
}

func (m *Monitor) checkStorageHeadroom() *Alert {
	free, err := diskFree(m.sup.backups.Root())
	if err != nil {
		return &Alert{
			Severity:   AlertWarning,
			Category:   AlertStorageHeadroom,
			Message:    fmt.Sprintf("cannot determine free space: %v", err),
			OccurredAt: time.Now().UTC(),
		}
	}

	switch {
	case free < m.sup.cfg.MinFreeBytes:
		return &Alert{
			Severity:   AlertCritical,
			Category:   AlertStorageHeadroom,
			Message:    fmt.Sprintf("%d bytes free, below the %d byte minimum", free, m.sup.cfg.MinFreeBytes),
			OccurredAt: time.Now().UTC(),
		}
	case free < m.sup.cfg.LowStorageBytes:
		return &Alert{
			Severity:   AlertWarning,
			Category:   AlertStorageHeadroom,
			Message:    fmt.Sprintf("%d bytes free, below the %d byte comfort threshold", free, m.sup.cfg.LowStorageBytes),
			OccurredAt: time.Now().UTC(),
		}
	}
	return nil
}

// checkLegacyIntegrity re-parses the legacy blob; an undecodable or
// critically invalid blob is the data-corruption condition that triggers
// automatic emergency rollback.
func (m *Monitor) checkLegacyIntegrity(ctx context.Context) *Alert {
	data, err := m.sup.store.Get(ctx, domain.KeyLegacyData)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &Alert{
			Severity:   AlertWarning,
			Category:   AlertDataCorruption,
			Message:    fmt.Sprintf("cannot read legacy data: %v", err),
			OccurredAt: time.Now().UTC(),
		}
	}

	var legacy domain.LegacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return &Alert{
			Severity:   AlertCritical,
			Category:   AlertDataCorruption,
			Message:    fmt.Sprintf("legacy data is not decodable: %v", err),
			OccurredAt: time.Now().UTC(),
		}
	}

	if issues := m.sup.engine.ValidatePreMigration(ctx, &legacy); validation.HasCritical(issues) {
		return &Alert{
			Severity:   AlertCritical,
			Category:   AlertDataCorruption,
			Message:    fmt.Sprintf("legacy data fails integrity checks: %v", validation.CriticalMessages(issues)),
			OccurredAt: time.Now().UTC(),
		}
	}
	return nil
}

func (m *Monitor) checkBackupHealth(ctx context.Context) *Alert {
	ids, err := m.sup.backups.List(ctx)
	if err != nil {
		return &Alert{
			Severity:   AlertWarning,
			Category:   AlertBackupHealth,
			Message:    fmt.Sprintf("cannot list backups: %v", err),
			OccurredAt: time.Now().UTC(),
		}
	}
	if len(ids) == 0 {
		return nil
	}

	// Only probe the newest backup; full history verification is left to
	// explicit verify runs.
	verification, err := m.sup.backups.VerifyBackup(ctx, ids[0])
	if err != nil || !verification.OK {
		detail := "newest backup fails verification"
		if err != nil {
			detail = fmt.Sprintf("newest backup cannot be verified: %v", err)
		}
		return &Alert{
			Severity:   AlertWarning,
			Category:   AlertBackupHealth,
			Message:    detail,
			OccurredAt: time.Now().UTC(),
		}
	}
	return nil
}
