package agents

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/internal/telemetry"
)

// Stats is the process-local record of an agent's cycles. It is
// informational only and resets on restart.
type Stats struct {
	Cycles      int       `json:"cycles"`
	Processed   int       `json:"processed"`
	Failures    int       `json:"failures"`
	LastRunAt   time.Time `json:"last_run_at"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at"`
}

type scheduled struct {
	agent    Agent
	interval time.Duration
}

// Runner runs each registered agent on its own ticker.
type Runner struct {
	agents  []scheduled
	metrics Metrics

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once

	mu      sync.Mutex
	started bool
	stats   map[string]*Stats
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(metrics Metrics) *Runner {
	return &Runner{
		metrics:   metrics,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		stats:     make(map[string]*Stats),
	}
}

// Add schedules agent every interval. Must be called before Start.
func (r *Runner) Add(agent Agent, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, scheduled{agent: agent, interval: interval})
	r.stats[agent.Name()] = &Stats{}
}

// Start launches one goroutine per agent. Each agent runs a first cycle
// immediately.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	agents := r.agents
	r.mu.Unlock()

	logger.Info("Starting agents", logger.KeyCount, len(agents))
	for _, s := range agents {
		r.wg.Add(1)
		go r.loop(ctx, s)
	}

	go func() {
		r.wg.Wait()
		close(r.stoppedCh)
	}()
}

// Stop signals every agent to stop and waits for running cycles to finish,
// at most timeout.
func (r *Runner) Stop(timeout time.Duration) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.stopOnce.Do(func() { close(r.stopCh) })
	select {
	case <-r.stoppedCh:
		logger.Info("Agents stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("Agent stop timed out")
	}
}

func (r *Runner) loop(ctx context.Context, s scheduled) {
	defer r.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Debug("Agent started", logger.KeyAgent, s.agent.Name(), "interval", s.interval)
	for {
		r.RunCycle(ctx, s.agent)

		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle runs one cycle of agent with tracing, metrics and stats.
func (r *Runner) RunCycle(ctx context.Context, agent Agent) {
	name := agent.Name()
	ctx, span := telemetry.StartAgentSpan(ctx, name)
	defer span.End()

	lc := logger.NewLogContext("").WithAgent(name).WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	start := time.Now()
	processed, err := agent.RunOnce(ctx)
	duration := time.Since(start)

	if r.metrics != nil {
		r.metrics.ObserveCycle(name, duration, processed, err)
	}
	telemetry.SetAttributes(ctx, telemetry.Updated(processed))

	r.mu.Lock()
	st, ok := r.stats[name]
	if !ok {
		st = &Stats{}
		r.stats[name] = st
	}
	st.Cycles++
	st.Processed += processed
	st.LastRunAt = start
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
		st.LastErrorAt = time.Now()
	}
	r.mu.Unlock()

	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Agent cycle failed",
			logger.KeyCount, processed,
			logger.DurationAttr(duration),
			logger.KeyError, err)
		return
	}
	if processed > 0 {
		logger.InfoCtx(ctx, "Agent cycle completed",
			logger.KeyCount, processed,
			logger.DurationAttr(duration))
	}
}

// Stats returns a copy of every agent's statistics.
func (r *Runner) Stats() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.stats))
	for name, st := range r.stats {
		out[name] = *st
	}
	return out
}
