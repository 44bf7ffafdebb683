package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FundingInterval length of one funding cycle.
const FundingInterval = 8 * time.Hour

// FundingState funding rate of the selected instrument and the next payment time.
type FundingState struct {
	Symbol        string          `json:"symbol"`
	Rate          decimal.Decimal `json:"rate"`
	NextFundingAt time.Time       `json:"nextFundingAt"`
}

// NextFundingAt returns the next multiple of FundingInterval since the epoch,
// ceil(now / 8h) * 8h. A time exactly on the boundary is its own next funding.
func NextFundingAt(now time.Time) time.Time {
	ms := now.UnixMilli()
	step := FundingInterval.Milliseconds()
	next := ms / step * step
	if next < ms {
		next += step
	}
	return time.UnixMilli(next).UTC()
}

// Countdown formats the time left until NextFundingAt as HH:MM:SS.
func (f FundingState) Countdown(now time.Time) string {
	if f.NextFundingAt.IsZero() {
		return "--:--:--"
	}
	left := f.NextFundingAt.Sub(now)
	if left < 0 {
		left = 0
	}
	h := int(left / time.Hour)
	m := int(left % time.Hour / time.Minute)
	s := int(left % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
