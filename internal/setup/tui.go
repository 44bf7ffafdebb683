package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/hyperlev/config"
	"github.com/vadiminshakov/hyperlev/internal/domain"
)

const DefaultConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers values collected by the wizard.
type Answers struct {
	Network         string
	DefaultMarket   string
	DefaultLeverage string
	Slippage        string
	WebAddr         string
	ConfirmOrders   bool
}

// Build turns the answers into a config based on the defaults.
func (a Answers) Build() (config.Config, error) {
	conf := config.Default()
	conf.Network = a.Network
	conf.APIURL = config.APIURLFor(a.Network)
	conf.DefaultMarket = strings.ToUpper(strings.TrimSpace(a.DefaultMarket))
	conf.WebAddr = strings.TrimSpace(a.WebAddr)
	conf.ConfirmOrders = a.ConfirmOrders

	lev, err := strconv.Atoi(strings.TrimSpace(a.DefaultLeverage))
	if err != nil {
		return config.Config{}, fmt.Errorf("leverage must be an integer")
	}
	conf.DefaultLeverage = lev

	slippage, err := slippageFromPercent(a.Slippage)
	if err != nil {
		return config.Config{}, err
	}
	conf.Slippage = slippage

	if err := conf.Validate(); err != nil {
		return config.Config{}, err
	}
	return conf, nil
}

// RunTUI launches the terminal configuration wizard and writes the result to filename.
func RunTUI(filename string) error {
	if filename == "" {
		filename = DefaultConfigFile
	}

	answers := Answers{
		Network:         config.NetworkMainnet,
		DefaultMarket:   "BTC",
		DefaultLeverage: "10",
		Slippage:        "0.5",
		WebAddr:         ":8080",
		ConfirmOrders:   true,
	}
	var confirm bool

	// step 1: network
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("HYPERLEV CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Perpetuals with leverage, from your terminal.\n"))

	fmt.Println(stepStyle.Render("STEP 1: NETWORK"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which network?").
				Options(
					huh.NewOption("Mainnet", config.NetworkMainnet),
					huh.NewOption("Testnet", config.NetworkTestnet),
				).
				Value(&answers.Network),
		),
	).Run()
	if err != nil {
		return err
	}

	// market and leverage
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HYPERLEV CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: MARKET"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Default market").
				Description("Coin symbol (e.g. BTC, ETH)").
				Value(&answers.DefaultMarket).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("market cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Default leverage").
				Description("Clamped to the market maximum when selected").
				Value(&answers.DefaultLeverage).
				Validate(validateLeverage),
			huh.NewInput().
				Title("Market order slippage %").
				Description("Distance from mid of the limit price of market orders (e.g. 0.5)").
				Value(&answers.Slippage).
				Validate(func(s string) error {
					_, err := slippageFromPercent(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// service
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HYPERLEV CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: SERVICE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("State API address").
				Description("Leave empty to disable (e.g. :8080)").
				Value(&answers.WebAddr),
			huh.NewConfirm().
				Title("Ask before signing each order?").
				Value(&answers.ConfirmOrders),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HYPERLEV CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Network: %s\nMarket: %s\nLeverage: %sx\nSlippage: %s%%\nState API: %s\nConfirm orders: %t\n",
		answers.Network, strings.ToUpper(answers.DefaultMarket), answers.DefaultLeverage, answers.Slippage, answers.WebAddr, answers.ConfirmOrders,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	conf, err := answers.Build()
	if err != nil {
		return err
	}
	if err := Write(filename, conf); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", filename)))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render(fmt.Sprintf("Set %s (or %s for watch-only) in .env before running.", config.EnvPrivateKey, config.EnvAddress)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

// Write stores conf as yaml, without secrets.
func Write(filename string, conf config.Config) error {
	data, err := yaml.Marshal(conf.ToTmp())
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// ConfirmSignature asks on the terminal whether an order may be signed.
func ConfirmSignature(ctx context.Context, hints domain.SignHints) (bool, error) {
	ok := false
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(hints.Title).
				Description(hints.Description).
				Affirmative(hints.ButtonText).
				Negative("Reject").
				Value(&ok),
		),
	).RunWithContext(ctx)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func validateLeverage(s string) error {
	lev, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if lev < 1 || lev > 100 {
		return fmt.Errorf("must be between 1 and 100")
	}
	return nil
}

func slippageFromPercent(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(10)) {
		return decimal.Zero, fmt.Errorf("must be greater than 0 and at most 10")
	}
	return d.Div(decimal.NewFromInt(100)), nil
}
