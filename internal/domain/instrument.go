// Package domain defines core data structures used throughout the trading engine.
package domain

import "fmt"

// Instrument tradable perpetual contract.
type Instrument struct {
	// Symbol unique coin name, e.g. "BTC".
	Symbol string `json:"symbol"`
	// SizeDecimals number of decimals allowed in order sizes.
	SizeDecimals int `json:"sizeDecimals"`
	// MaxLeverage highest leverage the exchange allows.
	MaxLeverage int `json:"maxLeverage"`
	// AssetIndex position of the instrument in the exchange universe.
	AssetIndex int `json:"assetIndex"`
}

// String returns the string representation.
func (i Instrument) String() string {
	return fmt.Sprintf("%s-USD", i.Symbol)
}

// MaxPriceDecimals maximum number of decimals the exchange accepts in a price.
func (i Instrument) MaxPriceDecimals() int32 {
	d := 6 - i.SizeDecimals
	if d < 0 {
		return 0
	}
	return int32(d)
}
