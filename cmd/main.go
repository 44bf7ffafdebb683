// Command hyperlev is a client-side engine for leveraged perpetuals on
// Hyperliquid: it keeps markets, prices, account and funding fresh, computes
// order risk and signs and submits orders.
//
// Usage:
//
//	hyperlev run --config config.yaml
//	hyperlev markets --sort gainers
//	hyperlev trade --market ETH --side buy --amount 50 --leverage 10
//	hyperlev setup
//
// Environment (also read from .env):
//
//	HL_PRIVATE_KEY  hex private key; enables trading
//	HL_ADDRESS      wallet address for a watch-only session
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/config"
	"github.com/vadiminshakov/hyperlev/internal"
	"github.com/vadiminshakov/hyperlev/internal/domain"
	"github.com/vadiminshakov/hyperlev/internal/services/catalog"
	"github.com/vadiminshakov/hyperlev/internal/services/risk"
	"github.com/vadiminshakov/hyperlev/internal/setup"
	"github.com/vadiminshakov/hyperlev/internal/web"
	"github.com/vadiminshakov/hyperlev/pkg/logger"
)

var (
	cfgFile string

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	upStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "hyperlev",
		Short:         "Leveraged perpetuals trading engine for Hyperliquid",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to yaml config (defaults are used when empty)")

	rootCmd.AddCommand(runCmd(), marketsCmd(), tradeCmd(), setupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, downStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func bootstrap() (config.Config, *zap.Logger, error) {
	conf, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:      conf.Log.Level,
		Format:     conf.Log.Format,
		File:       conf.Log.File,
		MaxSizeMB:  conf.Log.MaxSizeMB,
		MaxBackups: conf.Log.MaxBackups,
		MaxAgeDays: conf.Log.MaxAgeDays,
	})
	if err != nil {
		return config.Config{}, nil, errors.Wrap(err, "create logger")
	}
	return conf, log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the engine and serve its state over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			// orders are never placed from the state API, so no terminal prompt
			comps, err := internal.NewComponents(conf, nil, log)
			if err != nil {
				return err
			}
			defer comps.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if conf.WebAddr != "" {
				srv := web.NewServer(conf.WebAddr, comps.Engine, comps.Journal, log.Named("web"))
				go func() {
					if err := srv.Start(ctx); err != nil {
						log.Error("state API stopped", zap.Error(err))
						cancel()
					}
				}()
			}

			if err := comps.Engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("engine stopped")
			return nil
		},
	}
}

func marketsCmd() *cobra.Command {
	var (
		search string
		sortBy string
	)
	cmd := &cobra.Command{
		Use:   "markets",
		Short: "List tradable markets with prices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			comps, err := internal.NewComponents(conf, nil, log)
			if err != nil {
				return err
			}
			defer comps.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := comps.Engine.ReloadCatalog(ctx); err != nil {
				return err
			}
			if err := comps.Engine.RefreshPrices(ctx); err != nil {
				return err
			}

			rows := comps.Engine.Markets(search, catalog.SortMode(sortBy))
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("MARKET", "PRICE", "CHANGE*", "MAX LEV", "SZ DEC")
			for _, r := range rows {
				change := r.ChangeText
				switch {
				case !r.HasChange:
					change = "---"
				case r.Change.IsNegative():
					change = downStyle.Render(change)
				default:
					change = upStyle.Render(change)
				}
				t.Row(r.Instrument.String(), r.PriceText, change, fmt.Sprintf("%dx", r.Instrument.MaxLeverage), fmt.Sprintf("%d", r.Instrument.SizeDecimals))
			}
			fmt.Println(titleStyle.Render(fmt.Sprintf("%d markets on %s", len(rows), conf.Network)))
			fmt.Println(t)
			fmt.Println(lipgloss.NewStyle().Faint(true).Render("* change against a synthetic session baseline, not 24h data"))
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by symbol")
	cmd.Flags().StringVar(&sortBy, "sort", string(catalog.SortDefault), "default, gainers or losers")
	return cmd
}

type tradeFlags struct {
	market     string
	side       string
	kind       string
	amount     string
	size       string
	price      string
	leverage   int
	margin     string
	takeProfit string
	stopLoss   string
	percent    string
}

func tradeCmd() *cobra.Command {
	var f tradeFlags
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Sign and submit one order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			comps, err := internal.NewComponents(conf, setup.ConfirmSignature, log)
			if err != nil {
				return err
			}
			defer comps.Close()
			if comps.Mode != internal.WalletKey {
				return fmt.Errorf("trading needs %s", config.EnvPrivateKey)
			}

			ctx, cancel := signalContext()
			defer cancel()

			return trade(ctx, comps.Engine, f)
		},
	}
	cmd.Flags().StringVar(&f.market, "market", "", "coin symbol, e.g. BTC")
	cmd.Flags().StringVar(&f.side, "side", "buy", "buy/long or sell/short")
	cmd.Flags().StringVar(&f.kind, "type", string(domain.OrderKindMarket), "market or limit")
	cmd.Flags().StringVar(&f.amount, "amount", "", "margin in USDC")
	cmd.Flags().StringVar(&f.size, "size", "", "position size in the base coin (instead of --amount)")
	cmd.Flags().StringVar(&f.percent, "percent", "", "margin as percent of the available balance (instead of --amount)")
	cmd.Flags().StringVar(&f.price, "price", "", "limit price")
	cmd.Flags().IntVar(&f.leverage, "leverage", 0, "leverage (config default when 0)")
	cmd.Flags().StringVar(&f.margin, "margin", string(domain.MarginModeIsolated), "isolated or cross")
	cmd.Flags().StringVar(&f.takeProfit, "tp", "", "take profit trigger price")
	cmd.Flags().StringVar(&f.stopLoss, "sl", "", "stop loss trigger price")
	return cmd
}

func trade(ctx context.Context, engine *internal.Engine, f tradeFlags) error {
	side, err := domain.ParseSide(strings.ToLower(f.side))
	if err != nil {
		return err
	}
	kind := domain.OrderKind(strings.ToLower(f.kind))
	margin := domain.MarginMode(strings.ToLower(f.margin))
	if !margin.IsValid() {
		return fmt.Errorf("unknown margin mode %q", f.margin)
	}

	amount, err := optionalDecimal("amount", f.amount)
	if err != nil {
		return err
	}
	size, err := optionalDecimal("size", f.size)
	if err != nil {
		return err
	}
	pct, err := optionalDecimal("percent", f.percent)
	if err != nil {
		return err
	}
	price, err := optionalDecimal("price", f.price)
	if err != nil {
		return err
	}
	tp, err := optionalDecimal("tp", f.takeProfit)
	if err != nil {
		return err
	}
	sl, err := optionalDecimal("sl", f.stopLoss)
	if err != nil {
		return err
	}

	if err := engine.ReloadCatalog(ctx); err != nil {
		return err
	}
	if f.market != "" {
		if err := engine.SelectInstrument(strings.ToUpper(f.market)); err != nil {
			return err
		}
	}
	if f.leverage > 0 {
		engine.SetLeverage(f.leverage)
	}
	if err := engine.RefreshPrices(ctx); err != nil {
		return err
	}
	if _, err := engine.RefreshAccount(ctx); err != nil {
		return err
	}
	if err := engine.OpenOrderSheet(side); err != nil {
		return err
	}

	engine.UpdateDraft(func(d *domain.OrderDraft) {
		d.Kind = kind
		d.MarginMode = margin
		d.LimitPrice = price
		d.TakeProfit = tp
		d.StopLoss = sl
		if size.IsPositive() {
			d.Unit = domain.SizingUnitBase
			d.BaseSize = size
		} else {
			d.Unit = domain.SizingUnitQuote
			d.Notional = amount
		}
	})
	if pct.IsPositive() {
		engine.SetAmountPercent(pct.Div(decimal.NewFromInt(100)))
	}

	printPreview(engine.State())

	receipt, err := engine.SubmitOrder(ctx)
	if err != nil {
		return err
	}

	fmt.Println(upStyle.Render("order accepted"), receipt.AttemptID)
	for _, st := range receipt.Statuses {
		line := st.Status
		if st.OrderID != 0 {
			line += fmt.Sprintf(" oid=%d", st.OrderID)
		}
		if st.AvgPx != "" {
			line += fmt.Sprintf(" avgPx=%s sz=%s", st.AvgPx, st.TotalSz)
		}
		fmt.Println("  " + line)
	}
	return nil
}

func printPreview(st internal.TradingViewState) {
	p := st.Preview
	liq := "---"
	if p.LiquidationKnown {
		liq = risk.FormatPrice(p.LiquidationPrice)
	}
	symbol := ""
	if st.Selected != nil {
		symbol = st.Selected.String()
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Rows(
			[]string{"Market", symbol},
			[]string{"Side", string(st.Draft.Side)},
			[]string{"Mid", st.MidPriceText},
			[]string{"Leverage", fmt.Sprintf("%sx (%s)", st.Leverage, st.LeverageBand)},
			[]string{"Size", p.Size.String()},
			[]string{"Margin", risk.FormatPrice(p.RequiredMargin)},
			[]string{"Est. fee", p.EstimatedFee.StringFixed(4)},
			[]string{"Liq. price", liq},
			[]string{"Funding", fmt.Sprintf("%s in %s", st.FundingRateText, st.FundingCountdown)},
		)
	fmt.Println(titleStyle.Render("Order preview"))
	fmt.Println(t)
}

func optionalDecimal(name, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q", name, s)
	}
	return d, nil
}

func setupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setup.RunTUI(out)
		},
	}
	cmd.Flags().StringVar(&out, "out", setup.DefaultConfigFile, "file to write")
	return cmd
}
