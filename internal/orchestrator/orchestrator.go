package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repowatch/internal/pipeline"
	"github.com/temirov/repowatch/internal/repos/shared"
)

const (
	taskRunnerMissingMessageConstant     = "task runner not configured"
	recordDurationsErrorTemplateConstant = "unable to record check durations: %w"
	runStartedMessageConstant            = "run started"
	runCompletedMessageConstant          = "run completed"
	runFailedMessageConstant             = "run stopped after a repository failed"
	taskCompletedMessageConstant         = "repository processed"
	recordFailedMessageConstant          = "unable to record check durations"
	logFieldRunIdentifierConstant        = "run_id"
	logFieldModeConstant                 = "mode"
	logFieldTaskCountConstant            = "repositories"
	logFieldWorkerCountConstant          = "workers"
	logFieldPathConstant                 = "path"
	logFieldStateConstant                = "state"
	logFieldDurationConstant             = "duration"
	logFieldCompletedCountConstant       = "completed"
)

// ErrTaskRunnerNotConfigured indicates the orchestrator was built without a task runner.
var ErrTaskRunnerNotConfigured = errors.New(taskRunnerMissingMessageConstant)

// TaskRunner processes a single repository. Service.Check and Service.Update satisfy it.
type TaskRunner func(executionContext context.Context, info pipeline.RepositoryInfo, report pipeline.StepReporter) (pipeline.RepositoryInfo, error)

// ProgressObserver receives task lifecycle notifications. Implementations must be safe for concurrent use.
type ProgressObserver interface {
	TaskStarted(info pipeline.RepositoryInfo, total int)
	TaskStepped(info pipeline.RepositoryInfo, step pipeline.Step)
	TaskFinished(info pipeline.RepositoryInfo, completed int, total int)
}

// DurationRecorder persists per-repository timings.
type DurationRecorder interface {
	RecordDurations(durations map[string]time.Duration) error
}

// Dependencies enumerates the collaborators of an Orchestrator.
type Dependencies struct {
	Runner   TaskRunner
	Recorder DurationRecorder
	Observer ProgressObserver
	Clock    shared.Clock
	Logger   *zap.Logger
}

// RunOptions configures a single run.
type RunOptions struct {
	Mode Mode
	Pool WorkerPool
}

// Orchestrator dispatches repository tasks and aggregates their results.
type Orchestrator struct {
	runner   TaskRunner
	recorder DurationRecorder
	observer ProgressObserver
	clock    shared.Clock
	logger   *zap.Logger
}

// NewOrchestrator validates dependencies and constructs an Orchestrator.
func NewOrchestrator(dependencies Dependencies) (*Orchestrator, error) {
	if dependencies.Runner == nil {
		return nil, ErrTaskRunnerNotConfigured
	}
	observer := dependencies.Observer
	if observer == nil {
		observer = silentObserver{}
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		runner:   dependencies.Runner,
		recorder: dependencies.Recorder,
		observer: observer,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Run processes infos and returns their final records in the order given.
// Durations of completed tasks are recorded even when another task fails; in that case no results are returned.
func (orchestrator *Orchestrator) Run(executionContext context.Context, infos []pipeline.RepositoryInfo, options RunOptions) ([]pipeline.RepositoryInfo, error) {
	run := &runState{
		orchestrator: orchestrator,
		logger:       orchestrator.logger.With(zap.String(logFieldRunIdentifierConstant, uuid.NewString())),
		infos:        infos,
		results:      make([]pipeline.RepositoryInfo, len(infos)),
		completed:    make([]bool, len(infos)),
	}

	workerCount := 1
	if options.Mode == ModeParallel {
		workerCount = options.Pool.Size()
	}
	run.logger.Debug(runStartedMessageConstant,
		zap.Stringer(logFieldModeConstant, options.Mode),
		zap.Int(logFieldTaskCountConstant, len(infos)),
		zap.Int(logFieldWorkerCountConstant, workerCount))

	var runError error
	if options.Mode == ModeSequential {
		runError = run.sequential(executionContext)
	} else {
		runError = run.parallel(executionContext, workerCount)
	}

	recordError := orchestrator.recordDurations(run)
	if runError != nil {
		if recordError != nil {
			run.logger.Warn(recordFailedMessageConstant, zap.Error(recordError))
		}
		run.logger.Debug(runFailedMessageConstant, zap.Error(runError))
		return nil, runError
	}
	if recordError != nil {
		return nil, recordError
	}

	run.logger.Debug(runCompletedMessageConstant, zap.Int64(logFieldCompletedCountConstant, run.completedCount.Load()))
	return run.results, nil
}

func (orchestrator *Orchestrator) recordDurations(run *runState) error {
	if orchestrator.recorder == nil {
		return nil
	}
	durations := make(map[string]time.Duration)
	for index, done := range run.completed {
		if done {
			durations[run.results[index].Path] = run.results[index].Duration
		}
	}
	if len(durations) == 0 {
		return nil
	}
	if recordError := orchestrator.recorder.RecordDurations(durations); recordError != nil {
		return fmt.Errorf(recordDurationsErrorTemplateConstant, recordError)
	}
	return nil
}

// runState holds per-run bookkeeping. Each slot of results and completed is written only by the task owning that index.
type runState struct {
	orchestrator   *Orchestrator
	logger         *zap.Logger
	infos          []pipeline.RepositoryInfo
	results        []pipeline.RepositoryInfo
	completed      []bool
	completedCount atomic.Int64
}

func (run *runState) sequential(executionContext context.Context) error {
	for index := range run.infos {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		if taskError := run.execute(executionContext, index); taskError != nil {
			return taskError
		}
	}
	return nil
}

// parallel never cancels executionContext, so tasks already running finish; tasks not yet started are skipped after a failure.
func (run *runState) parallel(executionContext context.Context, workerCount int) error {
	var group errgroup.Group
	group.SetLimit(workerCount)
	var failed atomic.Bool

	for index := range run.infos {
		group.Go(func() error {
			if failed.Load() || executionContext.Err() != nil {
				return executionContext.Err()
			}
			taskError := run.execute(executionContext, index)
			if taskError != nil {
				failed.Store(true)
			}
			return taskError
		})
	}
	return group.Wait()
}

func (run *runState) execute(executionContext context.Context, index int) error {
	orchestrator := run.orchestrator
	info := run.infos[index]
	total := len(run.infos)

	orchestrator.observer.TaskStarted(info, total)
	startedAt := orchestrator.clock.Now()
	result, taskError := orchestrator.runner(executionContext, info, func(step pipeline.Step) {
		orchestrator.observer.TaskStepped(info, step)
	})
	if taskError != nil {
		return taskError
	}
	result.Duration = orchestrator.clock.Now().Sub(startedAt)

	run.results[index] = result
	run.completed[index] = true
	completedCount := run.completedCount.Add(1)

	run.logger.Debug(taskCompletedMessageConstant,
		zap.String(logFieldPathConstant, result.Path),
		zap.Stringer(logFieldStateConstant, result.State),
		zap.Duration(logFieldDurationConstant, result.Duration))
	orchestrator.observer.TaskFinished(result, int(completedCount), total)
	return nil
}

type silentObserver struct{}

func (silentObserver) TaskStarted(pipeline.RepositoryInfo, int)           {}
func (silentObserver) TaskStepped(pipeline.RepositoryInfo, pipeline.Step) {}
func (silentObserver) TaskFinished(pipeline.RepositoryInfo, int, int)     {}
