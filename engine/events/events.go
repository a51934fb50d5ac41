// Package events publishes run and seed lifecycle notifications over NATS so
// a process other than the one driving a run (a dashboard, an alerter, a
// second beaker process watching a shared store) can react to it.
package events

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/beakerflow/beaker/engine/report"
	"github.com/beakerflow/beaker/pkg/fn"
	"github.com/beakerflow/beaker/pkg/natsutil"
	"github.com/beakerflow/beaker/pkg/resilience"
)

// Subjects a Publisher emits on. Each is a narrow NATS subject suitable for
// wildcard subscription (e.g. "beaker.run.>").
const (
	SubjectRunStarted    = "beaker.run.started"
	SubjectRunCompleted  = "beaker.run.completed"
	SubjectRunFailed     = "beaker.run.failed"
	SubjectSeedCompleted = "beaker.seed.completed"
	SubjectSeedFailed    = "beaker.seed.failed"
)

// RunStarted announces that a run began.
type RunStarted struct {
	RunMode     report.Mode `json:"run_mode"`
	OnlyBeakers []string    `json:"only_beakers,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
}

// RunCompleted announces that a run finished without error.
type RunCompleted struct {
	RunMode     report.Mode            `json:"run_mode"`
	OnlyBeakers []string               `json:"only_beakers,omitempty"`
	Duration    time.Duration          `json:"duration"`
	Nodes       map[string]map[string]int `json:"nodes"`
}

// RunFailed announces that a run stopped early because of an error.
type RunFailed struct {
	RunMode     report.Mode    `json:"run_mode"`
	OnlyBeakers []string       `json:"only_beakers,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Nodes       map[string]map[string]int `json:"nodes"`
	Error       string         `json:"error"`
}

// SeedCompleted announces that a seed finished importing items.
type SeedCompleted struct {
	Name       string    `json:"name"`
	BeakerName string    `json:"beaker_name"`
	NumItems   int       `json:"num_items"`
	ImportedAt time.Time `json:"imported_at"`
}

// SeedFailed announces that a seed's producer failed partway through.
type SeedFailed struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Publisher emits lifecycle events over NATS. A nil *nats.Conn makes every
// method a no-op, so callers can build a Publisher unconditionally and only
// connect to NATS when a broker URL is actually configured.
//
// Publishing is rate limited and non-blocking: these are best-effort
// notifications about a run or seed that is already underway, so a burst of
// events (e.g. many seeds run back to back) must never stall the caller
// waiting on a NATS token. A limited publish simply drops the event.
type Publisher struct {
	nc      *nats.Conn
	limiter *resilience.Limiter
}

// NewPublisher wraps nc. nc may be nil.
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{
		nc:      nc,
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 50, Burst: 50}),
	}
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	if p == nil || p.nc == nil {
		return nil
	}
	stage := resilience.LimiterStage(p.limiter, fn.Stage[any, struct{}](func(ctx context.Context, v any) fn.Result[struct{}] {
		return fn.FromPair(struct{}{}, natsutil.Publish(ctx, p.nc, subject, v))
	}))
	_, err := stage(ctx, v).Unwrap()
	return err
}

// RunStarted publishes that a run of the given mode began.
func (p *Publisher) RunStarted(ctx context.Context, mode report.Mode, onlyBeakers []string) error {
	return p.publish(ctx, SubjectRunStarted, RunStarted{
		RunMode:     mode,
		OnlyBeakers: onlyBeakers,
		StartedAt:   time.Now().UTC(),
	})
}

// RunCompleted publishes a finished run's report.
func (p *Publisher) RunCompleted(ctx context.Context, rep *report.RunReport) error {
	return p.publish(ctx, SubjectRunCompleted, RunCompleted{
		RunMode:     rep.RunMode,
		OnlyBeakers: rep.OnlyBeakers,
		Duration:    rep.Duration(),
		Nodes:       rep.Nodes,
	})
}

// RunFailed publishes a run's partial report alongside the error that ended it.
func (p *Publisher) RunFailed(ctx context.Context, rep *report.RunReport, cause error) error {
	evt := RunFailed{Error: cause.Error()}
	if rep != nil {
		evt.RunMode = rep.RunMode
		evt.OnlyBeakers = rep.OnlyBeakers
		evt.Duration = rep.Duration()
		evt.Nodes = rep.Nodes
	}
	return p.publish(ctx, SubjectRunFailed, evt)
}

// SeedCompleted publishes that a seed finished importing numItems records
// into beakerName.
func (p *Publisher) SeedCompleted(ctx context.Context, name, beakerName string, numItems int) error {
	return p.publish(ctx, SubjectSeedCompleted, SeedCompleted{
		Name:       name,
		BeakerName: beakerName,
		NumItems:   numItems,
		ImportedAt: time.Now().UTC(),
	})
}

// SeedFailed publishes that a seed's producer failed.
func (p *Publisher) SeedFailed(ctx context.Context, name string, cause error) error {
	return p.publish(ctx, SubjectSeedFailed, SeedFailed{Name: name, Error: cause.Error()})
}
