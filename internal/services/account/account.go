// Package account tracks margin summary and positions of the active wallet.
package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
)

type clearinghouseFetcher interface {
	ClearinghouseState(ctx context.Context, user string) (*clients.ClearinghouseState, error)
}

// Tracker owns the AccountSnapshot. Every request is tagged with the address and
// generation it was issued under and its result is dropped if either changed.
type Tracker struct {
	api    clearinghouseFetcher
	logger *zap.Logger
	now    func() time.Time

	mu         sync.RWMutex
	address    string
	generation uint64
	snapshot   domain.AccountSnapshot
}

func NewTracker(api clearinghouseFetcher, logger *zap.Logger) *Tracker {
	return &Tracker{api: api, logger: logger, now: time.Now}
}

// SetAddress switches the active wallet. The snapshot is cleared before this
// returns, so nothing from the previous address survives the switch.
// Returns false when addr is already active.
func (t *Tracker) SetAddress(addr string) bool {
	addr = strings.TrimSpace(addr)

	t.mu.Lock()
	defer t.mu.Unlock()

	if strings.EqualFold(addr, t.address) {
		return false
	}
	t.address = addr
	t.generation++
	t.snapshot = domain.AccountSnapshot{}

	t.logger.Info("active wallet changed, account cleared", zap.String("address", addr), zap.Uint64("generation", t.generation))
	return true
}

// Address returns the active wallet address, empty when disconnected.
func (t *Tracker) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.address
}

// PollOnce fetches the account state of address. No request is made when address
// is empty. If the active address changed while the request was in flight the
// response is discarded and domain.ErrStaleResponse is returned.
func (t *Tracker) PollOnce(ctx context.Context, address string) (domain.AccountSnapshot, error) {
	if address == "" {
		return domain.AccountSnapshot{}, nil
	}

	t.mu.RLock()
	gen := t.generation
	active := t.address
	t.mu.RUnlock()
	if !strings.EqualFold(active, address) {
		return domain.AccountSnapshot{}, errors.Wrapf(domain.ErrStaleResponse, "address %s is not active", address)
	}

	state, err := t.api.ClearinghouseState(ctx, address)
	if err != nil {
		t.logger.Warn("failed to fetch account state", zap.String("address", address), zap.Error(err))
		return domain.AccountSnapshot{}, err
	}

	snapshot, err := t.toSnapshot(address, state)
	if err != nil {
		t.logger.Warn("malformed account state", zap.String("address", address), zap.Error(err))
		return domain.AccountSnapshot{}, domain.NewParseError("clearinghouseState", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.generation != gen || !strings.EqualFold(t.address, address) || ctx.Err() != nil {
		t.logger.Debug("discarding stale account response", zap.String("address", address))
		return domain.AccountSnapshot{}, errors.Wrapf(domain.ErrStaleResponse, "account response for %s", address)
	}
	t.snapshot = snapshot
	return snapshot.Clone(), nil
}

// Snapshot returns a copy of the latest account snapshot.
func (t *Tracker) Snapshot() domain.AccountSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.Clone()
}

func (t *Tracker) toSnapshot(address string, st *clients.ClearinghouseState) (domain.AccountSnapshot, error) {
	equity, err := parseOptional(st.MarginSummary.AccountValue)
	if err != nil {
		return domain.AccountSnapshot{}, errors.Wrap(err, "accountValue")
	}
	marginUsed, err := parseOptional(st.MarginSummary.TotalMarginUsed)
	if err != nil {
		return domain.AccountSnapshot{}, errors.Wrap(err, "totalMarginUsed")
	}
	withdrawable, err := parseOptional(st.Withdrawable)
	if err != nil {
		return domain.AccountSnapshot{}, errors.Wrap(err, "withdrawable")
	}

	positions := make([]domain.Position, 0, len(st.AssetPositions))
	pnl := decimal.Zero
	for _, ap := range st.AssetPositions {
		p := ap.Position
		szi, err := parseOptional(p.Szi)
		if err != nil || szi.IsZero() {
			continue
		}
		entry := decimal.Zero
		if p.EntryPx != nil {
			if entry, err = decimal.NewFromString(*p.EntryPx); err != nil {
				continue
			}
		}
		pos, err := domain.NewPositionFromSigned(p.Coin, szi, entry)
		if err != nil {
			t.logger.Debug("skip position", zap.String("coin", p.Coin), zap.Error(err))
			continue
		}
		pos.UnrealizedPnl, _ = parseOptional(p.UnrealizedPnl)
		if p.LiquidationPx != nil {
			pos.LiquidationPrice, _ = parseOptional(*p.LiquidationPx)
		}
		pos.Leverage = decimal.NewFromInt(int64(p.Leverage.Value))

		pnl = pnl.Add(pos.UnrealizedPnl)
		positions = append(positions, pos)
	}

	return domain.AccountSnapshot{
		Address:       address,
		Equity:        equity,
		MarginUsed:    marginUsed,
		UnrealizedPnl: pnl,
		Withdrawable:  withdrawable,
		Positions:     positions,
		UpdatedAt:     t.now(),
	}, nil
}

func parseOptional(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
