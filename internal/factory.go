package internal

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/config"
	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/services/signer"
	"github.com/vadiminshakov/hyperlev/internal/services/trader"
	"github.com/vadiminshakov/hyperlev/internal/storage/orderjournal"
)

// WalletMode how the session signs orders.
type WalletMode string

const (
	// WalletNone no wallet: market data only.
	WalletNone WalletMode = "none"
	// WalletWatch address only: account data, no signing.
	WalletWatch WalletMode = "watch"
	// WalletKey private key held locally.
	WalletKey WalletMode = "key"
)

// Components process-level collaborators built from configuration.
type Components struct {
	Engine  *Engine
	API     *clients.HyperliquidAPI
	Journal *orderjournal.WALStore
	Mode    WalletMode
	Address string
}

// NewComponents builds the API client, wallet, journal and engine of conf.
// prompt, when not nil and conf.ConfirmOrders is set, is asked before every signature.
func NewComponents(conf config.Config, prompt signer.Prompt, logger *zap.Logger) (*Components, error) {
	api := clients.NewHyperliquidAPI(conf.APIURL,
		clients.WithTimeout(conf.RequestTimeout),
		clients.WithRateLimit(conf.RequestsPerSecond),
	)

	c := &Components{API: api, Mode: WalletNone}

	var (
		wallet trader.Signer
		opts   []Option
	)
	switch {
	case conf.PrivateKey != "":
		hl, err := clients.NewHyperliquidClient(conf.PrivateKey, conf.APIURL)
		if err != nil {
			return nil, errors.Wrap(err, "create hyperliquid client")
		}
		keySigner := signer.NewKeySigner(hl.PrivateKey(), logger.Named("signer"))
		wallet = keySigner
		if conf.ConfirmOrders && prompt != nil {
			wallet = signer.NewConfirmingSigner(keySigner, prompt)
		}
		opts = append(opts, WithLeverageSyncer(hl))
		c.Mode = WalletKey
		c.Address = hl.AccountAddress()
	case conf.Address != "":
		c.Mode = WalletWatch
		c.Address = conf.Address
	}

	if conf.JournalDir != "" {
		journal, err := orderjournal.NewWALStore(conf.JournalDir)
		if err != nil {
			return nil, errors.Wrap(err, "open order journal")
		}
		c.Journal = journal
		opts = append(opts, WithJournal(journal))
	}

	source := trader.SourceMainnet
	if conf.IsTestnet() {
		source = trader.SourceTestnet
	}

	c.Engine = NewEngine(api, wallet, EngineConfig{
		Network:                conf.Network,
		Source:                 source,
		DefaultSymbol:          conf.DefaultMarket,
		DefaultLeverage:        conf.DefaultLeverage,
		FeeRate:                conf.FeeRate,
		Slippage:               conf.Slippage,
		SigningTimeout:         conf.SigningTimeout,
		PriceInterval:          conf.PriceInterval,
		AccountInterval:        conf.AccountInterval,
		FundingInterval:        conf.FundingInterval,
		ClockInterval:          conf.ClockInterval,
		BookInterval:           conf.BookInterval,
		CatalogRefreshInterval: conf.CatalogRefreshInterval,
	}, logger, opts...)

	if c.Address != "" {
		c.Engine.SetAddress(c.Address)
	}

	logger.Info("components ready", zap.String("network", conf.Network), zap.String("wallet", string(c.Mode)), zap.String("address", c.Address))
	return c, nil
}

// Close releases the journal.
func (c *Components) Close() error {
	if c.Journal != nil {
		return c.Journal.Close()
	}
	return nil
}
