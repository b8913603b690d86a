// Package devnet runs two throwaway anvil chains in docker, one per chain role, so a full
// deployment can be rehearsed locally.
package devnet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/compose-network/bridge-deployer/configs"
	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/compose-network/bridge-deployer/internal/record"
)

const (
	containerPrefix = "bridge-deployer-"
	anvilPort       = "8545/tcp"
	labelKey        = "com.compose-network.bridge-deployer"
)

type (
	engine interface {
		ImageExists(ctx context.Context, imageName string) (bool, error)
		PullImage(ctx context.Context, imageName string) error
		ContainerState(ctx context.Context, name string) (exists, running bool, err error)
		StartContainer(ctx context.Context, spec ContainerSpec) (string, error)
		RemoveContainer(ctx context.Context, name string) error
	}

	Node struct {
		Role    record.ChainRole
		ChainID int
		Port    int
	}

	Devnet struct {
		engine engine
		image  string
		nodes  []Node
		logger *slog.Logger
	}
)

func New(e engine, cfg configs.Devnet) *Devnet {
	return &Devnet{
		engine: e,
		image:  cfg.Image,
		nodes: []Node{
			{Role: record.ChainLocal, ChainID: cfg.LocalChainID, Port: cfg.LocalPort},
			{Role: record.ChainNative, ChainID: cfg.NativeChainID, Port: cfg.NativePort},
		},
		logger: logger.Named("devnet"),
	}
}

func (n Node) ContainerName() string {
	return containerPrefix + string(n.Role)
}

func (n Node) RPCURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", n.Port)
}

func (d *Devnet) Nodes() []Node {
	return d.nodes
}

// Up starts every node that is not running yet and returns all nodes.
func (d *Devnet) Up(ctx context.Context) ([]Node, error) {
	exists, err := d.engine.ImageExists(ctx, d.image)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect image %s: %w", d.image, err)
	}
	if !exists {
		if err := d.engine.PullImage(ctx, d.image); err != nil {
			return nil, err
		}
	}

	for _, node := range d.nodes {
		log := d.logger.With("role", node.Role).With("container", node.ContainerName())

		exists, running, err := d.engine.ContainerState(ctx, node.ContainerName())
		if err != nil {
			return nil, err
		}
		if running {
			log.Info("node already running")
			continue
		}
		if exists {
			if err := d.engine.RemoveContainer(ctx, node.ContainerName()); err != nil {
				return nil, err
			}
		}

		id, err := d.engine.StartContainer(ctx, d.spec(node))
		if err != nil {
			return nil, err
		}
		log.With("id", id).With("rpc_url", node.RPCURL()).With("chain_id", node.ChainID).Info("node started")
	}

	return d.nodes, nil
}

// Down removes every node container.
func (d *Devnet) Down(ctx context.Context) error {
	for _, node := range d.nodes {
		if err := d.engine.RemoveContainer(ctx, node.ContainerName()); err != nil {
			return err
		}
		d.logger.With("container", node.ContainerName()).Info("node removed")
	}

	return nil
}

func (d *Devnet) spec(node Node) ContainerSpec {
	return ContainerSpec{
		Name:       node.ContainerName(),
		Image:      d.image,
		Entrypoint: []string{"anvil"},
		Cmd:        []string{"--host", "0.0.0.0", "--port", "8545", "--chain-id", strconv.Itoa(node.ChainID)},
		Labels:     map[string]string{labelKey: string(node.Role)},
		Ports:      map[string]string{anvilPort: strconv.Itoa(node.Port)},
	}
}
