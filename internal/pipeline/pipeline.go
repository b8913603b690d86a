// Package pipeline runs the local, native and patch stages as one resumable deployment. The
// deployment record is the only progress marker: a stage is complete when its outcome is
// visible in the record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/compose-network/bridge-deployer/internal/metrics"
	"github.com/compose-network/bridge-deployer/internal/record"
)

type Stage string

const (
	StageLocal     Stage = "local"
	StageNative    Stage = "native"
	StagePatch     Stage = "patch"
	StageCompleted Stage = "completed"
)

// StageOrder is the order in which stages run.
var StageOrder = []Stage{StageLocal, StageNative, StagePatch, StageCompleted}

func (s Stage) String() string {
	return string(s)
}

// StageIndex returns the position of stage in StageOrder, or -1.
func StageIndex(stage Stage) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// ParseStage accepts the name of a runnable stage.
func ParseStage(name string) (Stage, error) {
	stage := Stage(name)
	if idx := StageIndex(stage); idx < 0 || stage == StageCompleted {
		return "", fmt.Errorf("unknown stage '%s', expected one of local, native, patch", name)
	}
	return stage, nil
}

// IsStageComplete reports whether r already reflects a successful run of stage.
func IsStageComplete(r record.Record, stage Stage) bool {
	switch stage {
	case StageLocal:
		_, ok := r.Entry(record.ChainLocal)
		return ok
	case StageNative:
		_, ok := r.Entry(record.ChainNative)
		return ok
	case StagePatch, StageCompleted:
		return r.Complete()
	default:
		return false
	}
}

// NextStage returns the first stage r does not reflect yet.
func NextStage(r record.Record) Stage {
	for _, stage := range StageOrder {
		if !IsStageComplete(r, stage) {
			return stage
		}
	}
	return StageCompleted
}

type (
	ChainDeployer interface {
		Deploy(ctx context.Context) (record.ChainEntry, error)
	}

	RecordPatcher interface {
		Run(ctx context.Context) (record.Record, error)
	}

	Orchestrator struct {
		store   record.Store
		local   ChainDeployer
		native  ChainDeployer
		patcher RecordPatcher
		metrics *metrics.Recorder
		logger  *slog.Logger
	}

	Result struct {
		Executed []Stage
		Skipped  []Stage
		Record   record.Record
	}
)

func NewOrchestrator(store record.Store, local, native ChainDeployer, patcher RecordPatcher, rec *metrics.Recorder) *Orchestrator {
	return &Orchestrator{
		store:   store,
		local:   local,
		native:  native,
		patcher: patcher,
		metrics: rec,
		logger:  logger.Named("pipeline"),
	}
}

// Run resumes the deployment at the first incomplete stage. A non-empty force re-runs that
// stage even if complete; later stages still run only when incomplete. Run stops at the
// first failing stage.
func (o *Orchestrator) Run(ctx context.Context, force Stage) (Result, error) {
	current, err := o.load(ctx)
	if err != nil {
		return Result{}, err
	}

	start := NextStage(current)
	if force != "" {
		if _, err := ParseStage(string(force)); err != nil {
			return Result{}, err
		}
		start = force
	}

	var result Result
	for _, stage := range StageOrder[StageIndex(start):] {
		if stage == StageCompleted {
			break
		}
		if stage != force && IsStageComplete(current, stage) {
			o.logger.With("stage", stage).Info("stage already complete, skipping")
			result.Skipped = append(result.Skipped, stage)
			continue
		}

		o.logger.With("stage", stage).Info("executing stage")
		if err := o.execute(ctx, stage); err != nil {
			result.Record = current
			return result, fmt.Errorf("stage %s failed: %w", stage, err)
		}
		o.metrics.StageCompleted(stage.String(), time.Now())
		o.logger.With("stage", stage).Info("stage completed")
		result.Executed = append(result.Executed, stage)

		if current, err = o.load(ctx); err != nil {
			return result, err
		}
	}

	result.Record = current
	if current.Complete() {
		o.logger.Info("deployment complete")
	}

	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, stage Stage) error {
	switch stage {
	case StageLocal:
		_, err := o.local.Deploy(ctx)
		return err
	case StageNative:
		_, err := o.native.Deploy(ctx)
		return err
	case StagePatch:
		_, err := o.patcher.Run(ctx)
		return err
	default:
		return fmt.Errorf("unknown stage '%s'", stage)
	}
}

func (o *Orchestrator) load(ctx context.Context) (record.Record, error) {
	current, err := o.store.Load(ctx)
	switch {
	case errors.Is(err, record.ErrCorrupt):
		return record.Record{}, fmt.Errorf("deployment record at %s is unreadable: %w", o.store.Location(), err)
	case errors.Is(err, record.ErrNotFound):
		return record.New(), nil
	case err != nil:
		return record.Record{}, fmt.Errorf("failed to load deployment record: %w", err)
	}
	return current, nil
}
