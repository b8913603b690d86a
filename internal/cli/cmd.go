package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/compose-network/bridge-deployer/configs"
	"github.com/compose-network/bridge-deployer/internal/devnet"
	"github.com/compose-network/bridge-deployer/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	localCmd = &cobra.Command{
		Use:   "local",
		Short: "Deploy the local chain contracts (Sender, Bridge, Job)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeployment(cmd.Context(), func(ctx context.Context, s *Service) error {
				return s.DeployLocal(ctx)
			})
		},
	}

	nativeCmd = &cobra.Command{
		Use:   "native",
		Short: "Deploy the native chain contracts and patch the local Sender",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeployment(cmd.Context(), func(ctx context.Context, s *Service) error {
				return s.DeployNative(ctx)
			})
		},
	}

	patchCmd = &cobra.Command{
		Use:   "patch",
		Short: "Close pending cross-chain bindings left by an interrupted native run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeployment(cmd.Context(), func(ctx context.Context, s *Service) error {
				return s.Patch(ctx)
			})
		},
	}

	forceStage string

	pipelineCmd = &cobra.Command{
		Use:   "pipeline",
		Short: "Run every incomplete stage in order: local, native, patch",
		RunE: func(cmd *cobra.Command, args []string) error {
			var force pipeline.Stage
			if forceStage != "" {
				var err error
				if force, err = pipeline.ParseStage(forceStage); err != nil {
					return err
				}
			}
			return runDeployment(cmd.Context(), func(ctx context.Context, s *Service) error {
				return s.Pipeline(ctx, force)
			})
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the deployment record without contacting any chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configs.Values.Record.Validate(); err != nil {
				return err
			}
			service, release, err := newStatusService(configs.Values)
			if err != nil {
				return err
			}
			defer release()

			return service.Status(cmd.Context())
		},
	}

	compileCmd = &cobra.Command{
		Use:   "compile",
		Short: "Compile the contracts project into a contracts bundle",
		Long:  "Runs hardhat in the contracts project and writes contracts.json with the ABI and bytecode of every deployed contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.With("project_dir", configs.Values.Contracts.ProjectDir).Info("running contract compilation command")
			if err := compileContracts(cmd.Context(), configs.Values.Contracts); err != nil {
				return fmt.Errorf("failed to compile contracts: %w", err)
			}
			slog.With("bundle", configs.Values.Contracts.Bundle).Info("contracts compiled successfully")
			return nil
		},
	}

	devnetCmd = &cobra.Command{
		Use:   "devnet",
		Short: "Run two local anvil chains in docker for rehearsing a deployment",
	}

	devnetUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Start the local and native devnet chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevnet(func(d *devnet.Devnet) error {
				nodes, err := d.Up(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to start devnet: %w", err)
				}
				for _, node := range nodes {
					slog.With("chain", node.Role, "chain_id", node.ChainID, "rpc_url", node.RPCURL()).Info("devnet chain ready")
				}
				return nil
			})
		},
	}

	devnetDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Remove the devnet chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevnet(func(d *devnet.Devnet) error {
				if err := d.Down(cmd.Context()); err != nil {
					return fmt.Errorf("failed to stop devnet: %w", err)
				}
				slog.Info("devnet removed")
				return nil
			})
		},
	}
)

func init() {
	pipelineCmd.Flags().StringVar(&forceStage, "force-stage", "", "Re-run this stage (local, native or patch) even if complete")

	devnetCmd.AddCommand(devnetUpCmd, devnetDownCmd)
}

// Commands returns every subcommand of the deployer.
func Commands() []*cobra.Command {
	return []*cobra.Command{localCmd, nativeCmd, patchCmd, pipelineCmd, statusCmd, compileCmd, devnetCmd}
}

func runDeployment(ctx context.Context, run func(context.Context, *Service) error) error {
	slog.Info("validating configuration")
	if err := configs.Values.Validate(); err != nil {
		return err
	}

	service, release, err := newDeploymentService(configs.Values)
	if err != nil {
		return err
	}
	defer release()

	return run(ctx, service)
}

func withDevnet(run func(*devnet.Devnet) error) error {
	client, err := devnet.NewClient()
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.With("err", err).Warn("failed to close docker client")
		}
	}()

	return run(devnet.New(client, configs.Values.Devnet))
}
