// Package pipeline turns free-form task requests into tool executions.
// A task moves through Received, Classified, Planned, Executing and ends in
// Completed or Failed. Classification decides which tools the task needs;
// planning resolves them against the registry; execution runs the plan's
// steps strictly in order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/tools"
)

// State is a task lifecycle state.
type State string

const (
	StateReceived   State = "received"
	StateClassified State = "classified"
	StatePlanned    State = "planned"
	StateExecuting  State = "executing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// StepStatus is the outcome of one plan step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Classification is the classifier's verdict on a task: what kind of
// operation it is, the extracted parameters, and the tools it needs in
// execution order. Sequential marks each tool as depending on its
// predecessor, so one failure skips everything after it.
type Classification struct {
	OperationKind string
	Parameters    map[string]any
	RequiredTools []string
	Sequential    bool
}

// Classifier decides what a task wants. Implementations may call out to an
// external model; RuleClassifier is the deterministic local one.
type Classifier interface {
	Classify(ctx context.Context, input string) (*Classification, error)
}

// Step is one planned tool invocation. DependsOn lists indexes of earlier
// steps whose failure makes this step pointless.
type Step struct {
	Tool      *tools.Tool
	Args      map[string]any
	DependsOn []int
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	Tool   string        `json:"tool"`
	Status StepStatus    `json:"status"`
	Result *tools.Result `json:"result,omitempty"`
	Err    string        `json:"error,omitempty"`
}

// TaskResult is the aggregate outcome of one task.
type TaskResult struct {
	TaskID    string       `json:"task_id"`
	Kind      string       `json:"kind,omitempty"`
	State     State        `json:"state"`
	Steps     []StepResult `json:"steps"`
	Err       string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
}

// Engine runs tasks end to end.
type Engine struct {
	classifier Classifier
	registry   *tools.Registry
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates a pipeline engine.
func NewEngine(classifier Classifier, registry *tools.Registry, logger *slog.Logger) *Engine {
	return &Engine{classifier: classifier, registry: registry, logger: logger, now: time.Now}
}

// Execute takes a task through the full lifecycle and returns the aggregate
// result. The returned error is non-nil only when the task could not run at
// all (classification or planning failure, cancellation); per-step failures
// are reported inside the result.
func (e *Engine) Execute(ctx context.Context, input string) (*TaskResult, error) {
	res := &TaskResult{
		TaskID:    uuid.NewString(),
		State:     StateReceived,
		StartedAt: e.now(),
	}
	logger := e.logger.With(slog.String("task", res.TaskID))
	logger.Info("pipeline: task received")

	cls, err := e.classifier.Classify(ctx, input)
	if err != nil {
		res.State = StateFailed
		res.EndedAt = e.now()
		res.Err = err.Error()
		return res, fmt.Errorf("pipeline: %w: %v", apperr.ErrClassification, err)
	}
	res.State = StateClassified
	res.Kind = cls.OperationKind
	logger.Info("pipeline: task classified",
		slog.String("kind", cls.OperationKind),
		slog.Any("tools", cls.RequiredTools))

	plan, err := e.plan(cls)
	if err != nil {
		res.State = StateFailed
		res.EndedAt = e.now()
		res.Err = err.Error()
		return res, err
	}
	res.State = StatePlanned

	res.State = StateExecuting
	e.runPlan(ctx, logger, plan, res)

	res.EndedAt = e.now()
	if ctxErr := ctx.Err(); ctxErr != nil && res.State == StateExecuting {
		res.State = StateFailed
		res.Err = ctxErr.Error()
		return res, ctxErr
	}

	res.State = StateCompleted
	for _, step := range res.Steps {
		if step.Status != StepCompleted {
			res.State = StateFailed
			break
		}
	}
	logger.Info("pipeline: task finished", slog.String("state", string(res.State)))
	return res, nil
}

// plan resolves the classification's tools against the registry. An unknown
// tool fails the whole plan; nothing is silently skipped.
func (e *Engine) plan(cls *Classification) ([]Step, error) {
	steps := make([]Step, 0, len(cls.RequiredTools))
	for i, name := range cls.RequiredTools {
		tool, err := e.registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("pipeline: plan: %w", err)
		}
		step := Step{Tool: tool, Args: cls.Parameters}
		if cls.Sequential && i > 0 {
			step.DependsOn = []int{i - 1}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// runPlan executes steps strictly in order. A failed step fails the task but
// later independent steps still run; steps depending on a failed one are
// skipped. Parameter validation failures are treated as non-recoverable and
// halt everything that follows.
func (e *Engine) runPlan(ctx context.Context, logger *slog.Logger, plan []Step, res *TaskResult) {
	failed := make(map[int]bool, len(plan))
	halted := false

	for i, step := range plan {
		sr := StepResult{Tool: step.Tool.Name}

		if err := ctx.Err(); err != nil {
			sr.Status = StepSkipped
			sr.Err = err.Error()
			res.Steps = append(res.Steps, sr)
			continue
		}

		skip := halted
		for _, dep := range step.DependsOn {
			if failed[dep] {
				skip = true
			}
		}
		if skip {
			sr.Status = StepSkipped
			failed[i] = true
			res.Steps = append(res.Steps, sr)
			logger.Info("pipeline: step skipped", slog.String("tool", step.Tool.Name))
			continue
		}

		out, err := step.Tool.Execute(ctx, step.Args)
		switch {
		case err != nil:
			// Validation failure: retrying later steps with the same
			// classification output cannot succeed.
			sr.Status = StepFailed
			sr.Err = err.Error()
			failed[i] = true
			halted = true
			logger.Warn("pipeline: step rejected",
				slog.String("tool", step.Tool.Name),
				slog.String("error", err.Error()))
		case !out.Success:
			sr.Status = StepFailed
			sr.Result = out
			sr.Err = out.Err
			failed[i] = true
			logger.Warn("pipeline: step failed",
				slog.String("tool", step.Tool.Name),
				slog.String("error", out.Err))
		default:
			sr.Status = StepCompleted
			sr.Result = out
			logger.Info("pipeline: step completed", slog.String("tool", step.Tool.Name))
		}
		res.Steps = append(res.Steps, sr)
	}
}
