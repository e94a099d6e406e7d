package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
)

// TimeSource supplies the ledger's current time in unix seconds.
type TimeSource interface {
	Now(ctx context.Context) (int64, error)
}

// UseTimeSource makes CurrentTime read from src. SetTime and Advance keep
// moving the logical clock but it is no longer consulted.
func (l *Ledger) UseTimeSource(src TimeSource) {
	l.mu.Lock()
	l.source = src
	l.mu.Unlock()
}

// RPCClock reads cluster time as the block time of the latest slot at the
// configured commitment.
type RPCClock struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCClock creates an RPCClock against endpoint at finalized commitment.
func NewRPCClock(endpoint string) *RPCClock {
	return &RPCClock{client: rpc.New(endpoint), commitment: rpc.CommitmentFinalized}
}

// Now returns the block time of the current slot.
func (c *RPCClock) Now(ctx context.Context) (int64, error) {
	slot, err := c.client.GetSlot(ctx, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("rpc clock: get slot: %w", err)
	}
	bt, err := c.client.GetBlockTime(ctx, slot)
	if err != nil {
		return 0, fmt.Errorf("rpc clock: block time of slot %d: %w", slot, err)
	}
	if bt == nil {
		return 0, fmt.Errorf("rpc clock: slot %d has no block time", slot)
	}
	return int64(*bt), nil
}
