package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTOML = `
[accounts.gnucash]
checking = "Assets:Checking"
operating = "Assets:Operating"
processor_balance = "Assets:Stripe Balance"
transaction_fees = "Expenses:Transaction Fees"
billing_fees = "Expenses:Billing Fees"
subscription_income = "Income:Subscriptions"
invoice_income = "Income:Invoices"

[accounts.gnucash.withholding]
fica_employee = "Assets:Withholding:FICA-EE"
fica_employer = "Assets:Withholding:FICA-ER"
federal = "Assets:Withholding:Federal"
state = "Assets:Withholding:State"

[accounts.gnucash.tax_liability]
fica_employee = "Liabilities:Taxes:FICA-EE"
fica_employer = "Liabilities:Taxes:FICA-ER"
federal = "Liabilities:Taxes:Federal"
state = "Liabilities:Taxes:State"

[accounts.gnucash.tax_expense]
fica_employee = "Expenses:Taxes:FICA-EE"
fica_employer = "Expenses:Taxes:FICA-ER"
federal = "Expenses:Taxes:Federal"
state = "Expenses:Taxes:State"

[tax_rates]
fica_employee = 0.062
fica_employer = 0.062
federal_income = 0.12
state_income = 0.05
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validTOML)

	cfg, err := Load(path)
	require.NoError(t, err)

	acct, err := cfg.AccountsFor("gnucash")
	require.NoError(t, err)
	assert.Equal(t, "Assets:Stripe Balance", acct.ProcessorBalance)
	assert.Equal(t, "Liabilities:Taxes:Federal", acct.TaxLiability.Federal)
	assert.Equal(t, "Expenses:Taxes:FICA-ER", acct.TaxExpense.FICAEmployer)
	assert.Equal(t, "Assets:Withholding:State", acct.Withholding.State)

	assert.InDelta(t, 0.062, cfg.TaxRates.FICAEmployee, 1e-9)
	assert.InDelta(t, 0.12, cfg.TaxRates.FederalIncome, 1e-9)
}

func TestLoadOptionDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validTOML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Options.AutoWithhold)
	assert.True(t, cfg.Options.SplitFICA)
	assert.True(t, cfg.Options.RoundToCents)
}

func TestLoadOptionOverride(t *testing.T) {
	content := validTOML + `
[options]
auto_withhold = false
`
	path := writeConfig(t, t.TempDir(), content)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Options.AutoWithhold)
	assert.True(t, cfg.Options.SplitFICA)
}

func TestAccountsForMissingExporter(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validTOML)

	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.AccountsFor("beancount")
	assert.Error(t, err)
}

func TestAccountsForMissingKey(t *testing.T) {
	cfg := &Config{Accounts: map[string]Accounts{"gnucash": {Checking: "Assets:Checking"}}}

	_, err := cfg.AccountsFor("gnucash")
	assert.ErrorContains(t, err, "missing required keys")
}

func TestLoadInvalidRate(t *testing.T) {
	bad := `
[accounts.gnucash]
checking = "x"

[tax_rates]
fica_employee = 1.5
`
	path := writeConfig(t, t.TempDir(), bad)

	_, err := Load(path)
	assert.ErrorContains(t, err, "fica_employee")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	assert.Error(t, err)
}

func TestFindWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, validTOML)

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), found)
}

func TestFindNotFound(t *testing.T) {
	_, err := Find(t.TempDir())
	assert.Error(t, err)
}
