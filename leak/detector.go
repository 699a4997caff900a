package leak

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guileen/dbtrack/logger"
	"github.com/guileen/dbtrack/tracker"
)

// DefaultThreshold is how long a resource may stay open before it is
// reported as leaked.
const DefaultThreshold = 5 * time.Minute

// Detector walks every root in a registrar and reports resources that have
// been open longer than its threshold.
type Detector struct {
	registrar *tracker.Registrar
	logger    *slog.Logger
	metrics   *Metrics
	threshold atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDetector creates a detector. l and metrics may be nil.
func NewDetector(registrar *tracker.Registrar, l *slog.Logger, metrics *Metrics) *Detector {
	if l == nil {
		l = logger.Logger
	}
	d := &Detector{
		registrar: registrar,
		logger:    l.With(logger.Component("leak_detector")),
		metrics:   metrics,
	}
	d.threshold.Store(int64(DefaultThreshold))
	return d
}

// SetLeakThreshold sets the age past which an open resource is a leak.
func (d *Detector) SetLeakThreshold(threshold time.Duration) {
	d.threshold.Store(int64(threshold))
}

// LeakThreshold returns the current threshold.
func (d *Detector) LeakThreshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// CheckForLeaks checks with the configured threshold and records the result
// in the leak gauge.
func (d *Detector) CheckForLeaks() *Report {
	report := d.Check(d.LeakThreshold())
	if d.metrics != nil {
		d.metrics.SetLeaks(report)
	}
	return report
}

// Check reports every open resource, flagging those open longer than
// threshold. A resource reachable from several registries is reported once.
// Metrics are left untouched.
func (d *Detector) Check(threshold time.Duration) *Report {
	now := time.Now()
	report := &Report{
		Timestamp:     now,
		Threshold:     threshold,
		Resources:     make([]Info, 0),
		Leaks:         make([]Info, 0),
		ResourceStats: make(map[tracker.Kind]int),
	}
	seen := make(map[string]bool)

	var walk func(children []tracker.Child, root, parentID string)
	walk = func(children []tracker.Child, root, parentID string) {
		for _, child := range children {
			for _, r := range child.Resources() {
				info := newInfo(r, root, parentID, now)
				if seen[info.ResourceID] || r.Closed() {
					continue
				}
				seen[info.ResourceID] = true
				report.Resources = append(report.Resources, info)
				report.ResourceStats[info.ResourceType]++
				if info.LeakDuration >= threshold {
					report.Leaks = append(report.Leaks, info)
				}
				walk(r.Children(), root, info.ResourceID)
			}
		}
	}
	for _, root := range d.registrar.Roots() {
		walk(root.Children(), root.Name(), "")
	}

	report.TotalTracked = len(report.Resources)
	report.TotalLeaks = len(report.Leaks)
	return report
}

// LogLeaks writes one warning per leak in report.
func (d *Detector) LogLeaks(report *Report) {
	for _, leak := range report.Leaks {
		d.logger.Warn("resource leak detected",
			logger.String("root", leak.Root),
			logger.Kind(string(leak.ResourceType)),
			logger.String("resource_id", leak.ResourceID),
			logger.Duration("open_for", leak.LeakDuration),
			logger.String("allocated_at", leak.StackTrace))
	}
}

// StartMonitoring checks for leaks every interval until ctx is done or
// StopMonitoring is called. Calling it while already monitoring does nothing.
func (d *Detector) StartMonitoring(ctx context.Context, interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if report := d.CheckForLeaks(); report.TotalLeaks > 0 {
					d.logger.Warn("leaked resources found", logger.Int("count", report.TotalLeaks))
					d.LogLeaks(report)
				}
			}
		}
	}()
}

// StopMonitoring stops the monitoring goroutine and waits for it to exit.
func (d *Detector) StopMonitoring() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
}
