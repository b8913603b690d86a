package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/compose-network/bridge-deployer/configs"
	"github.com/compose-network/bridge-deployer/internal/chain"
	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/compose-network/bridge-deployer/internal/deploy"
	"github.com/compose-network/bridge-deployer/internal/metrics"
	"github.com/compose-network/bridge-deployer/internal/output"
	"github.com/compose-network/bridge-deployer/internal/pipeline"
	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/google/uuid"
)

// newDeploymentService wires every component of a deployment run from cfg. The returned
// function releases the record store connection.
func newDeploymentService(cfg configs.Config) (*Service, func(), error) {
	runID := beginRun()

	env, err := deploy.NewEnvironment(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	set, err := contracts.Load(cfg.Contracts.Bundle)
	if err != nil {
		return nil, nil, err
	}

	dialer, err := chain.NewEthDialer(cfg.Wallet.PrivateKey, cfg.ConfirmationTimeout)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := record.Open(cfg.Record)
	if err != nil {
		return nil, nil, err
	}

	rec := metrics.New()
	local := deploy.NewLocalDeployer(env, set, store, dialer, rec)
	native := deploy.NewNativeDeployer(env, set, store, dialer, rec)
	patcher := deploy.NewPatcher(env, set, store, dialer, rec)

	service := NewService(
		runID,
		store,
		local,
		native,
		patcher,
		pipeline.NewOrchestrator(store, local, native, patcher, rec),
		output.NewGenerator(env, set),
		rec,
		Outputs{ReportPath: cfg.Output.Path, TextfilePath: cfg.Metrics.Textfile, Stdout: os.Stdout},
	)

	return service, releaseStore(closeStore), nil
}

// newStatusService wires a read-only service. Chain settings are reported on a best-effort
// basis, so status works without a wallet key.
func newStatusService(cfg configs.Config) (*Service, func(), error) {
	env, err := deploy.NewEnvironment(cfg)
	if err != nil {
		slog.With("err", err).Warn("configuration incomplete, chain settings omitted from status")
		env = deploy.Environment{}
	}

	set, err := contracts.Load(cfg.Contracts.Bundle)
	if err != nil {
		slog.With("err", err).Warn("contracts bundle unavailable, ABIs omitted from status")
		set = contracts.Set{}
	}

	store, closeStore, err := record.Open(cfg.Record)
	if err != nil {
		return nil, nil, err
	}

	service := NewService("", store, nil, nil, nil, nil, output.NewGenerator(env, set), (*metrics.Recorder)(nil),
		Outputs{Stdout: os.Stdout})

	return service, releaseStore(closeStore), nil
}

// beginRun tags every subsequent log line with a fresh run id.
func beginRun() string {
	runID := uuid.NewString()
	slog.SetDefault(slog.Default().With("run_id", runID))
	slog.Info("deployment run started")
	return runID
}

func releaseStore(closeStore func() error) func() {
	return func() {
		if err := closeStore(); err != nil {
			slog.With("err", err).Warn("failed to close record store")
		}
	}
}

func compileContracts(ctx context.Context, cfg configs.Contracts) error {
	if cfg.ProjectDir == "" {
		return errors.New("contracts.project-dir is required to compile")
	}
	return contracts.NewCompiler(cfg.ProjectDir, cfg.Bundle).Compile(ctx, contracts.All())
}
