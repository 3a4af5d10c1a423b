// Package reset sequences the environment reset: clear the build area,
// lock the time of day, teleport occupants to a safe point. Every step is
// deadline-bounded and the whole run finishes inside a fixed ceiling; a
// slow step is reported as timed out and the next one still runs.
package reset

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"geovoxel.dev/internal/geo"
	"geovoxel.dev/internal/protocol"
)

// Executor is the slice of the rcon client the orchestrator needs.
type Executor interface {
	Execute(ctx context.Context, command string) protocol.CommandResult
	ExecuteFill(ctx context.Context, min, max geo.VoxelPoint, block, replace string) protocol.CommandResult
}

const (
	StatusOK      = "ok"
	StatusTimeout = "timeout"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type StepResult struct {
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	Detail  string        `json:"detail,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

type Report struct {
	Success        bool          `json:"success"`
	PartialSuccess bool          `json:"partial_success"`
	Steps          []StepResult  `json:"steps"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

type Options struct {
	// Confirm must be set for the destructive reset to run at all.
	Confirm bool

	// Area to clear.
	Min, Max geo.VoxelPoint

	// SafePoint receives the teleported occupants.
	SafePoint geo.VoxelPoint

	// TimeValue is the fixed time of day, e.g. "day" or "6000".
	TimeValue string

	ClearDeadline time.Duration
	StepDeadline  time.Duration
	Ceiling       time.Duration
}

func (o *Options) normalize() {
	if o.TimeValue == "" {
		o.TimeValue = "day"
	}
	if o.ClearDeadline <= 0 {
		o.ClearDeadline = 15 * time.Second
	}
	if o.StepDeadline <= 0 {
		o.StepDeadline = 3 * time.Second
	}
	if o.Ceiling <= 0 {
		o.Ceiling = 25 * time.Second
	}
}

type Orchestrator struct {
	client Executor
	log    *log.Logger
}

func New(client Executor, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(os.Stdout, "[reset] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Orchestrator{client: client, log: logger}
}

// Run executes the reset sequence. Without Confirm it performs no command
// at all and reports a single skipped step.
func (o *Orchestrator) Run(ctx context.Context, opts Options) Report {
	opts.normalize()
	start := time.Now()

	if !opts.Confirm {
		return Report{
			Steps: []StepResult{{
				Name:   "confirm",
				Status: StatusSkipped,
				Detail: "destructive reset requires the confirm flag; nothing was executed",
			}},
			Elapsed: time.Since(start),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Ceiling)
	defer cancel()

	steps := []struct {
		name     string
		deadline time.Duration
		run      func(context.Context) protocol.CommandResult
	}{
		{
			name:     "clear",
			deadline: opts.ClearDeadline,
			run: func(ctx context.Context) protocol.CommandResult {
				return o.client.ExecuteFill(ctx, opts.Min, opts.Max, "air", "")
			},
		},
		{
			name:     "time_lock",
			deadline: opts.StepDeadline,
			run: func(ctx context.Context) protocol.CommandResult {
				res := o.client.Execute(ctx, "gamerule doDaylightCycle false")
				if !res.Success {
					return res
				}
				return o.client.Execute(ctx, fmt.Sprintf("time set %s", opts.TimeValue))
			},
		},
		{
			name:     "teleport",
			deadline: opts.StepDeadline,
			run: func(ctx context.Context) protocol.CommandResult {
				p := opts.SafePoint
				return o.client.Execute(ctx, fmt.Sprintf("tp @a %d %d %d", p.X, p.Y, p.Z))
			},
		},
	}

	var report Report
	okCount := 0
	for _, step := range steps {
		stepStart := time.Now()
		stepCtx, stepCancel := context.WithTimeout(ctx, step.deadline)
		res := step.run(stepCtx)
		stepCancel()

		sr := StepResult{Name: step.name, Elapsed: time.Since(stepStart)}
		switch {
		case res.Success:
			sr.Status = StatusOK
			okCount++
		case res.ErrKind == protocol.KindTimeout:
			sr.Status = StatusTimeout
			sr.Detail = res.ErrDetail
			o.log.Printf("step %s timed out after %v, continuing", step.name, sr.Elapsed)
		default:
			sr.Status = StatusFailed
			sr.Detail = res.ErrKind + ": " + res.ErrDetail
			o.log.Printf("step %s failed: %s", step.name, sr.Detail)
		}
		report.Steps = append(report.Steps, sr)
	}

	report.Success = okCount == len(steps)
	report.PartialSuccess = okCount > 0 && okCount < len(steps)
	report.Elapsed = time.Since(start)
	return report
}
