package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/compose-network/bridge-deployer/internal/pipeline"
	"github.com/compose-network/bridge-deployer/internal/record"
)

// Service runs one deployment operation and always leaves the report and metrics behind,
// whether the operation succeeded or not.
type (
	chainDeployer interface {
		Deploy(ctx context.Context) (record.ChainEntry, error)
	}
	recordPatcher interface {
		Run(ctx context.Context) (record.Record, error)
	}
	stageRunner interface {
		Run(ctx context.Context, force pipeline.Stage) (pipeline.Result, error)
	}
	reportGenerator interface {
		Write(path, runID string, r record.Record) error
		Summary(w io.Writer, r record.Record) error
	}
	metricsWriter interface {
		SetPendingBindings(n int)
		WriteTextfile(path string) error
	}

	Service struct {
		runID       string
		store       record.Store
		local       chainDeployer
		native      chainDeployer
		patcher     recordPatcher
		stages      stageRunner
		output      reportGenerator
		metrics     metricsWriter
		outputPath  string
		metricsPath string
		out         io.Writer
		logger      *slog.Logger
	}

	Outputs struct {
		ReportPath   string
		TextfilePath string
		Stdout       io.Writer
	}
)

func NewService(
	runID string,
	store record.Store,
	local, native chainDeployer,
	patcher recordPatcher,
	stages stageRunner,
	output reportGenerator,
	metrics metricsWriter,
	outputs Outputs) *Service {
	return &Service{
		runID:       runID,
		store:       store,
		local:       local,
		native:      native,
		patcher:     patcher,
		stages:      stages,
		output:      output,
		metrics:     metrics,
		outputPath:  outputs.ReportPath,
		metricsPath: outputs.TextfilePath,
		out:         outputs.Stdout,
		logger:      logger.Named("bridge_service"),
	}
}

func (s *Service) DeployLocal(ctx context.Context) error {
	s.logger.Info("deploying local chain contracts")
	_, err := s.local.Deploy(ctx)
	return s.finish(ctx, err)
}

func (s *Service) DeployNative(ctx context.Context) error {
	s.logger.Info("deploying native chain contracts")
	_, err := s.native.Deploy(ctx)
	return s.finish(ctx, err)
}

func (s *Service) Patch(ctx context.Context) error {
	s.logger.Info("closing pending cross-chain bindings")
	_, err := s.patcher.Run(ctx)
	return s.finish(ctx, err)
}

// Pipeline runs the remaining stages in order, or re-runs force and what follows it.
func (s *Service) Pipeline(ctx context.Context, force pipeline.Stage) error {
	s.logger.With("force_stage", force).Info("running deployment pipeline")
	result, err := s.stages.Run(ctx, force)
	if err == nil {
		s.logger.With("executed", result.Executed, "skipped", result.Skipped).Info("pipeline finished")
	}
	return s.finish(ctx, err)
}

// Status prints the current record without touching any chain.
func (s *Service) Status(ctx context.Context) error {
	current, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.metrics.SetPendingBindings(len(current.PendingBindings))
	return s.output.Summary(s.out, current)
}

// finish writes the report, the summary and the metrics textfile for the record as it is
// now. Reporting problems are logged; the operation's own error is what the caller gets.
func (s *Service) finish(ctx context.Context, runErr error) error {
	if runErr != nil {
		s.logger.With("err", runErr).Error("deployment operation failed")
		WriteFailureReport(s.out, runErr)
	}

	current, err := s.load(ctx)
	if err != nil {
		s.logger.With("err", err).Warn("skipping deployment report, record unavailable")
	} else {
		s.metrics.SetPendingBindings(len(current.PendingBindings))
		if err := s.writeReport(current); err != nil {
			s.logger.With("err", err).Warn("failed to write deployment report")
		}
	}

	if err := s.metrics.WriteTextfile(s.metricsPath); err != nil {
		s.logger.With("err", err, "path", s.metricsPath).Warn("failed to write metrics textfile")
	}

	return runErr
}

func (s *Service) writeReport(current record.Record) error {
	if s.outputPath != "" {
		if err := s.output.Write(s.outputPath, s.runID, current); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.outputPath, err)
		}
		s.logger.With("path", s.outputPath).Info("deployment report written")
	}
	return s.output.Summary(s.out, current)
}

func (s *Service) load(ctx context.Context) (record.Record, error) {
	current, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, record.ErrCorrupt):
		return record.Record{}, fmt.Errorf("deployment record at %s is unreadable: %w", s.store.Location(), err)
	case errors.Is(err, record.ErrNotFound):
		return record.New(), nil
	case err != nil:
		return record.Record{}, fmt.Errorf("failed to load deployment record from %s: %w", s.store.Location(), err)
	}
	return current, nil
}
