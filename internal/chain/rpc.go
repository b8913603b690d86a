package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// waitForRPC polls url until it answers eth_blockNumber, giving up after attempts tries.
func waitForRPC(ctx context.Context, url string, attempts int, interval time.Duration) error {
	var lastErr error
	for range attempts {
		lastErr = probeRPC(ctx, url)
		if lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped waiting for RPC at %s: %w", url, ctx.Err())
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("timed out waiting for RPC at %s: %w", url, lastErr)
}

func probeRPC(ctx context.Context, url string) error {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	_, err = client.BlockNumber(ctx)
	return err
}
