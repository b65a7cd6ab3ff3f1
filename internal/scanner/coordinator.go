package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/portsweep/internal/model"
	"github.com/nao1215/portsweep/internal/portsource"
	"golang.org/x/sync/errgroup"
)

// Prober probes a single port. Implementations must be safe for concurrent
// use and must report transport failures through the result status.
type Prober interface {
	Probe(ctx context.Context, host string, port int, proto model.Protocol, timeout time.Duration) model.PortResult
}

// BannerHook receives every banner as soon as a worker captures it.
// It is called from worker goroutines and must be safe for concurrent use.
type BannerHook func(host string, port int, banner string)

// Coordinator runs scans with a bounded pool of workers.
type Coordinator struct {
	// prober performs the individual probes.
	prober Prober

	// logger is used for scan-level and per-port debug logging.
	logger *slog.Logger

	// bannerHook is notified of captured banners. May be nil.
	bannerHook BannerHook

	// now returns the current time. Replaced in tests.
	now func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithBannerHook sets the function notified of captured banners.
func WithBannerHook(hook BannerHook) Option {
	return func(c *Coordinator) {
		c.bannerHook = hook
	}
}

// WithClock sets the time source used for StartedAt and Duration.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Coordinator that probes ports with prober.
func New(prober Prober, opts ...Option) *Coordinator {
	c := &Coordinator{
		prober: prober,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Run scans every port of req and returns the report.
//
// Stealth mode overrides the worker count and timeout (see ApplyStealth)
// before the request is validated, so a stealth request needs neither. The
// request is validated before anything is probed. Exactly
// min(Workers, number of ports) workers are started; they pull ports from a
// shared queue until it is empty. The report is built only after all
// workers have returned, and its results are sorted by port.
//
// When ctx is cancelled, workers stop taking new ports. Run then returns the
// partial report with Cancelled set, together with the context error.
// Probes interrupted by the cancellation are not recorded.
func (c *Coordinator) Run(ctx context.Context, req model.ScanRequest) (*model.ScanReport, error) {
	req = ApplyStealth(req)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	source, err := portsource.New(req.Ports)
	if err != nil {
		return nil, err
	}

	queue := newWorkQueue(source.All(), source.Len())
	results := newResultSet(source.Len())
	workers := min(req.Workers, source.Len())

	report := &model.ScanReport{
		ID:       uuid.NewString(),
		Target:   req.Target,
		Protocol: req.Protocol,
		Ports:    req.Ports,
		Workers:  workers,
		Timeout:  req.Timeout,
		Stealth:  req.Stealth,
	}

	c.logger.Info("starting scan",
		"id", report.ID,
		"target", req.Target,
		"ports", req.Ports.String(),
		"protocol", req.Protocol.String(),
		"workers", workers,
		"timeout", req.Timeout,
		"stealth", req.Stealth,
	)

	report.StartedAt = c.now()

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			return c.work(ctx, req, queue, results)
		})
	}
	err = g.Wait()

	report.Duration = c.now().Sub(report.StartedAt)
	report.Results = results.Results()
	report.Sort()

	if err != nil {
		report.Cancelled = ctx.Err() != nil
		c.logger.Warn("scan stopped early",
			"id", report.ID,
			"probed", len(report.Results),
			"remaining", queue.Remaining(),
			"error", err,
		)
		return report, err
	}

	c.logger.Info("scan complete",
		"id", report.ID,
		"probed", len(report.Results),
		"open", len(report.OpenPorts()),
		"elapsed", report.Duration,
	)

	return report, nil
}

// work is the body of one worker. It returns nil once the queue is drained
// and ctx.Err() if the scan is cancelled first.
func (c *Coordinator) work(ctx context.Context, req model.ScanRequest, queue *workQueue, results *resultSet) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		port, ok := queue.Pop()
		if !ok {
			return nil
		}

		result := c.prober.Probe(ctx, req.Target, port, req.Protocol, req.Timeout)
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Port = port

		if err := results.Add(result); err != nil {
			return err
		}

		c.logger.Debug("port probed",
			"port", port,
			"status", result.Status.String(),
			"service", result.Service,
		)

		if result.Banner != "" && c.bannerHook != nil {
			c.bannerHook(req.Target, port, result.Banner)
		}
	}
}
