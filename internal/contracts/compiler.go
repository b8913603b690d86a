package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/moby/sys/atomicwriter"
)

// hardhatArtifact is the subset of a Hardhat artifact file the bundle needs.
type hardhatArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

type (
	// Runner executes the build tool. It exists so tests can skip the real toolchain.
	Runner interface {
		Run(ctx context.Context, dir, name string, args ...string) error
	}

	execRunner struct{}
)

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// Compiler builds the Hardhat project and collects the six artifacts into a single bundle.
type Compiler struct {
	projectDir string
	bundlePath string
	runner     Runner
	logger     *slog.Logger
}

func NewCompiler(projectDir, bundlePath string) *Compiler {
	return &Compiler{
		projectDir: projectDir,
		bundlePath: bundlePath,
		runner:     execRunner{},
		logger:     logger.Named("contracts_compiler"),
	}
}

// WithRunner replaces the process runner.
func (c *Compiler) WithRunner(r Runner) *Compiler {
	c.runner = r
	return c
}

func (c *Compiler) Compile(ctx context.Context, names []Name) error {
	c.logger.
		With("project_dir", c.projectDir).
		Info("starting contract compilation")

	if err := c.runner.Run(ctx, c.projectDir, "npx", "hardhat", "compile"); err != nil {
		return fmt.Errorf("hardhat compile failed: %w", err)
	}

	artifacts, err := c.findArtifacts(names)
	if err != nil {
		return err
	}

	bundle := make(map[string]bundleEntry, len(artifacts))
	for _, name := range names {
		artifact := artifacts[name]
		if _, err := abi.JSON(strings.NewReader(string(artifact.ABI))); err != nil {
			return fmt.Errorf("failed to parse ABI for %s: %w", name, err)
		}
		bundle[string(name)] = bundleEntry{ABI: artifact.ABI, Bytecode: artifact.Bytecode}
		c.logger.With("name", name).Info("collected contract artifact")
	}

	if err := c.writeBundle(bundle); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.bundlePath, err)
	}

	c.logger.With("path", c.bundlePath).Info("contracts compiled successfully")

	return nil
}

// findArtifacts walks artifacts/contracts for <Name>.json files. Debug files (*.dbg.json) and
// artifacts of unrelated contracts are ignored.
func (c *Compiler) findArtifacts(names []Name) (map[Name]hardhatArtifact, error) {
	wanted := make(map[string]Name, len(names))
	for _, name := range names {
		wanted[string(name)+".json"] = name
	}

	root := filepath.Join(c.projectDir, "artifacts", "contracts")
	found := make(map[Name]hardhatArtifact, len(names))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name, ok := wanted[d.Name()]
		if d.IsDir() || !ok {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read artifact %s: %w", path, err)
		}
		var artifact hardhatArtifact
		if err := json.Unmarshal(data, &artifact); err != nil {
			return fmt.Errorf("failed to parse artifact %s: %w", path, err)
		}
		if artifact.ContractName != string(name) {
			return nil
		}
		if _, dup := found[name]; dup {
			return fmt.Errorf("contract name '%s' is ambiguous: more than one artifact found", name)
		}
		found[name] = artifact

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect artifacts: %w", err)
	}

	var missing []error
	for _, name := range names {
		if _, ok := found[name]; !ok {
			missing = append(missing, fmt.Errorf("artifact for '%s' not found under %s", name, root))
		}
	}

	return found, errors.Join(missing...)
}

func (c *Compiler) writeBundle(bundle map[string]bundleEntry) error {
	if err := os.MkdirAll(filepath.Dir(c.bundlePath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal contracts: %w", err)
	}

	return atomicwriter.WriteFile(c.bundlePath, data, 0644)
}
