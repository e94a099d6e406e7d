package authority

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Delegation is a call-scoped capability: the custodian plus the verified
// authority every delegated call is signed with. Handlers obtain one per
// invocation and drop it when they return.
type Delegation struct {
	auth      domain.Authority
	custodian domain.EscrowCustodian
}

// Delegate derives and verifies the authority for house and binds it to
// custodian.
func (g *Gate) Delegate(house solana.PublicKey, custodian domain.EscrowCustodian) (*Delegation, error) {
	if custodian == nil {
		return nil, fmt.Errorf("authority: delegate %s: nil custodian", house)
	}
	auth, err := g.Authority(house)
	if err != nil {
		return nil, err
	}
	if err := g.Verify(auth); err != nil {
		return nil, err
	}
	return &Delegation{auth: auth, custodian: custodian}, nil
}

// Authority returns the signing identity of this delegation.
func (d *Delegation) Authority() domain.Authority { return d.auth }

// OpenTradeRecord opens party's trade record on asset. created is false when
// the record already existed.
func (d *Delegation) OpenTradeRecord(ctx context.Context, party solana.PublicKey, asset domain.AssetRef, price uint64) (domain.TradeRecord, bool, error) {
	tr, created, err := d.custodian.OpenTradeRecord(ctx, d.auth, party, asset, price)
	if err != nil {
		return domain.TradeRecord{}, false, fmt.Errorf("custodian: open trade record: %w", err)
	}
	return tr, created, nil
}

// CloseTradeRecord removes a trade record.
func (d *Delegation) CloseTradeRecord(ctx context.Context, ref solana.PublicKey) error {
	if err := d.custodian.CloseTradeRecord(ctx, d.auth, ref); err != nil {
		return fmt.Errorf("custodian: close trade record %s: %w", ref, err)
	}
	return nil
}

// TradeRecord reads a trade record.
func (d *Delegation) TradeRecord(ctx context.Context, ref solana.PublicKey) (domain.TradeRecord, error) {
	tr, err := d.custodian.TradeRecord(ctx, ref)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("custodian: trade record %s: %w", ref, err)
	}
	return tr, nil
}

// LockFunds moves amount from party's wallet into its escrow.
func (d *Delegation) LockFunds(ctx context.Context, party solana.PublicKey, amount uint64) error {
	if err := d.custodian.LockFunds(ctx, d.auth, party, amount); err != nil {
		return fmt.Errorf("custodian: lock funds: %w", err)
	}
	return nil
}

// ReleaseFunds pays out the escrow behind ref to splits.
func (d *Delegation) ReleaseFunds(ctx context.Context, ref solana.PublicKey, splits []domain.Split) error {
	if err := d.custodian.ReleaseFunds(ctx, d.auth, ref, splits); err != nil {
		return fmt.Errorf("custodian: release funds: %w", err)
	}
	return nil
}

// TransferAsset moves asset between from and to, forwarding payload as is.
func (d *Delegation) TransferAsset(ctx context.Context, from, to solana.PublicKey, asset domain.AssetRef, payload *domain.AuthorizationPayload) error {
	if err := d.custodian.TransferAsset(ctx, d.auth, from, to, asset, payload); err != nil {
		return fmt.Errorf("custodian: transfer asset: %w", err)
	}
	return nil
}

// AssetMetadata reads royalty and transfer-rule data for mint.
func (d *Delegation) AssetMetadata(ctx context.Context, mint solana.PublicKey) (domain.AssetMetadata, error) {
	md, err := d.custodian.AssetMetadata(ctx, mint)
	if err != nil {
		return domain.AssetMetadata{}, fmt.Errorf("custodian: metadata %s: %w", mint, err)
	}
	return md, nil
}

// CurrentTime reads the custodian's logical clock.
func (d *Delegation) CurrentTime(ctx context.Context) (int64, error) {
	now, err := d.custodian.CurrentTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("custodian: current time: %w", err)
	}
	return now, nil
}
