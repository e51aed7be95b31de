package processor

import (
	"context"
	"sync"
	"time"

	"peerrate/pkg/logger"
	"peerrate/pkg/metrics"

	"github.com/robfig/cron/v3"
)

const probeTimeout = 5 * time.Second

// HealthChecker - то, что умеет проверять доступность Core API
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ProbeStatus - результат последней проверки Core API
type ProbeStatus struct {
	Up        bool      `json:"up"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// CoreHealthProber периодически проверяет Core API и выставляет gauge core_api_up
type CoreHealthProber struct {
	cron   *cron.Cron
	client HealthChecker

	mu     sync.RWMutex
	status ProbeStatus
}

func NewCoreHealthProber(client HealthChecker) *CoreHealthProber {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &CoreHealthProber{
		cron:   c,
		client: client,
	}
}

func (p *CoreHealthProber) Start(ctx context.Context, schedule string) error {
	logger.Info().Str("schedule", schedule).Msg("Starting Core API health prober")

	_, err := p.cron.AddFunc(schedule, func() {
		p.Probe(ctx)
	})
	if err != nil {
		return err
	}

	p.cron.Start()

	// Первая проверка сразу, чтобы readiness не ждал расписания
	p.Probe(ctx)

	return nil
}

// Probe выполняет одну проверку и сохраняет результат
func (p *CoreHealthProber) Probe(ctx context.Context) ProbeStatus {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := p.client.Health(probeCtx)
	status := ProbeStatus{
		Up:        err == nil,
		CheckedAt: time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
	}

	p.mu.Lock()
	wasUp := p.status.Up || p.status.CheckedAt.IsZero()
	p.status = status
	p.mu.Unlock()

	metrics.SetCoreAPIUp(status.Up)
	if !status.Up && wasUp {
		logger.Warn().Err(err).Msg("Core API health probe failed")
	}
	if status.Up && !wasUp {
		logger.Info().Msg("Core API is reachable again")
	}

	return status
}

// Status возвращает результат последней проверки
func (p *CoreHealthProber) Status() ProbeStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *CoreHealthProber) Stop() {
	logger.Info().Msg("Stopping Core API health prober...")
	ctx := p.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Core API health prober stopped")
}

func (p *CoreHealthProber) GetEntries() []cron.Entry {
	return p.cron.Entries()
}
