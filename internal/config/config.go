// Package config loads the bookkeeper TOML configuration: account mappings
// per export target, withholding rates, and processing options.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ledgerpress/bookkeeper/internal/tax"
)

// FileName is the configuration file searched for when no explicit path is given.
const FileName = "config.toml"

// TaxAccounts names one account per withholding category.
type TaxAccounts struct {
	FICAEmployee string `mapstructure:"fica_employee"`
	FICAEmployer string `mapstructure:"fica_employer"`
	Federal      string `mapstructure:"federal"`
	State        string `mapstructure:"state"`
}

// Accounts is the full account mapping for one export target.
type Accounts struct {
	Checking           string      `mapstructure:"checking"`
	Operating          string      `mapstructure:"operating"`
	ProcessorBalance   string      `mapstructure:"processor_balance"`
	TransactionFees    string      `mapstructure:"transaction_fees"`
	BillingFees        string      `mapstructure:"billing_fees"`
	SubscriptionIncome string      `mapstructure:"subscription_income"`
	InvoiceIncome      string      `mapstructure:"invoice_income"`
	Withholding        TaxAccounts `mapstructure:"withholding"`
	TaxLiability       TaxAccounts `mapstructure:"tax_liability"`
	TaxExpense         TaxAccounts `mapstructure:"tax_expense"`
}

// TaxRates holds the configured withholding rates.
type TaxRates struct {
	FICAEmployee  float64 `mapstructure:"fica_employee"`
	FICAEmployer  float64 `mapstructure:"fica_employer"`
	FederalIncome float64 `mapstructure:"federal_income"`
	StateIncome   float64 `mapstructure:"state_income"`
}

// Rates converts the configured values into engine rates.
func (t TaxRates) Rates() tax.Rates {
	return tax.Rates{
		FICAEmployee:  t.FICAEmployee,
		FICAEmployer:  t.FICAEmployer,
		FederalIncome: t.FederalIncome,
		StateIncome:   t.StateIncome,
	}
}

// Options are processing flags. All default to true.
type Options struct {
	AutoWithhold bool `mapstructure:"auto_withhold"`
	SplitFICA    bool `mapstructure:"split_fica"`
	RoundToCents bool `mapstructure:"round_to_cents"`
}

// Config is the resolved bookkeeper configuration.
type Config struct {
	Accounts map[string]Accounts `mapstructure:"accounts"`
	TaxRates TaxRates            `mapstructure:"tax_rates"`
	Options  Options             `mapstructure:"options"`
}

// AccountsFor returns the account mapping for an export target, failing if the
// target is absent or any required account name is missing.
func (c *Config) AccountsFor(exporter string) (Accounts, error) {
	acct, ok := c.Accounts[exporter]
	if !ok {
		return Accounts{}, fmt.Errorf("no [accounts.%s] section in config", exporter)
	}
	if missing := acct.missing(); len(missing) > 0 {
		return Accounts{}, fmt.Errorf("accounts.%s missing required keys: %v", exporter, missing)
	}
	return acct, nil
}

func (a Accounts) missing() []string {
	required := []struct {
		key   string
		value string
	}{
		{"checking", a.Checking},
		{"operating", a.Operating},
		{"processor_balance", a.ProcessorBalance},
		{"transaction_fees", a.TransactionFees},
		{"billing_fees", a.BillingFees},
		{"subscription_income", a.SubscriptionIncome},
		{"invoice_income", a.InvoiceIncome},
		{"withholding.fica_employee", a.Withholding.FICAEmployee},
		{"withholding.fica_employer", a.Withholding.FICAEmployer},
		{"withholding.federal", a.Withholding.Federal},
		{"withholding.state", a.Withholding.State},
		{"tax_liability.fica_employee", a.TaxLiability.FICAEmployee},
		{"tax_liability.fica_employer", a.TaxLiability.FICAEmployer},
		{"tax_liability.federal", a.TaxLiability.Federal},
		{"tax_liability.state", a.TaxLiability.State},
		{"tax_expense.fica_employee", a.TaxExpense.FICAEmployee},
		{"tax_expense.fica_employer", a.TaxExpense.FICAEmployer},
		{"tax_expense.federal", a.TaxExpense.Federal},
		{"tax_expense.state", a.TaxExpense.State},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	return missing
}

// Find searches for config.toml starting at dir and walking up toward the
// filesystem root.
func Find(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	for {
		candidate := filepath.Join(current, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%s not found (searched from %s to filesystem root)", FileName, dir)
		}
		current = parent
	}
}

// Load reads and validates configuration from the given path. An empty path
// triggers an upward search from the working directory.
func Load(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		path, err = Find(cwd)
		if err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetDefault("options.auto_withhold", true)
	v.SetDefault("options.split_fica", true)
	v.SetDefault("options.round_to_cents", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("no [accounts.<exporter>] sections defined")
	}

	rates := []struct {
		key   string
		value float64
	}{
		{"fica_employee", c.TaxRates.FICAEmployee},
		{"fica_employer", c.TaxRates.FICAEmployer},
		{"federal_income", c.TaxRates.FederalIncome},
		{"state_income", c.TaxRates.StateIncome},
	}
	for _, r := range rates {
		if r.value < 0 || r.value >= 1 {
			return fmt.Errorf("tax_rates.%s must be in [0, 1), got %v", r.key, r.value)
		}
	}
	return nil
}
