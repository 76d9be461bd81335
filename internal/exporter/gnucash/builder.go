// Package gnucash builds balanced multi-split journal entries from ledger
// transactions and writes them as a GnuCash-importable CSV.
//
// Entry construction per canonical type:
//
//   - revenue: debit processor balance (net) and transaction fees; debit the
//     four tax-expense accounts and credit the four tax-liability accounts by
//     the withheld amounts (these cancel); credit the income account (gross).
//   - platform_fee: credit processor balance, debit billing-fee expense.
//   - payout: credit processor balance for the full amount; debit operating
//     for the amount net of linked withholding; debit each withholding asset
//     account with a positive aggregated amount.
package gnucash

import (
	"math"

	"github.com/ledgerpress/bookkeeper/internal/config"
	"github.com/ledgerpress/bookkeeper/internal/domain"
	"github.com/ledgerpress/bookkeeper/internal/ledger"
)

// Builder constructs journal entries from persisted transactions.
type Builder struct {
	store    *ledger.Store
	accounts config.Accounts
	opts     config.Options
}

// NewBuilder creates a journal builder for the given account mapping.
func NewBuilder(store *ledger.Store, accounts config.Accounts, opts config.Options) *Builder {
	return &Builder{store: store, accounts: accounts, opts: opts}
}

// BuildEntry constructs the journal entry for a transaction, fetching the tax
// data it needs from the store. Returns (nil, nil) when no entry is possible:
// required fields are missing or the type has no journal form.
func (b *Builder) BuildEntry(txn *domain.Transaction) (*domain.JournalEntry, error) {
	switch txn.Type {
	case domain.TypeRevenue:
		calc, err := b.store.TaxCalculation(txn.ID)
		if err != nil {
			return nil, err
		}
		return b.RevenueEntry(txn, calc), nil
	case domain.TypePlatformFee:
		return b.FeeEntry(txn), nil
	case domain.TypePayout:
		taxes, err := b.store.TaxesForPayout(txn.ID)
		if err != nil {
			return nil, err
		}
		return b.PayoutEntry(txn, taxes), nil
	default:
		// Refunds and adjustments have no journal form yet.
		return nil, nil
	}
}

// RevenueEntry builds the entry for a revenue transaction. The tax expense
// and liability splits cancel pairwise, so the entry balances exactly when
// net = gross - fees in the source data. Returns nil when gross or fees are
// missing.
func (b *Builder) RevenueEntry(txn *domain.Transaction, calc *domain.TaxCalculation) *domain.JournalEntry {
	if txn.Gross == nil || txn.Fees == nil {
		return nil
	}

	incomeAccount := b.accounts.SubscriptionIncome
	if txn.IncomeCategory == domain.CategoryInvoice {
		incomeAccount = b.accounts.InvoiceIncome
	}

	splits := []domain.Split{
		{Account: b.accounts.ProcessorBalance, Amount: txn.Net, Memo: "Net to processor balance"},
		{Account: b.accounts.TransactionFees, Amount: *txn.Fees, Memo: "Processing fee"},
	}

	if calc != nil {
		splits = append(splits, b.taxSplits(calc)...)
	}

	splits = append(splits, domain.Split{
		Account: incomeAccount,
		Amount:  -*txn.Gross,
		Memo:    txn.Description,
	})

	return &domain.JournalEntry{
		Date:        txn.Date,
		Description: revenueDescription(txn),
		Splits:      splits,
	}
}

// taxSplits returns the paired expense debits and liability credits for a
// calculation. With split_fica disabled, both FICA halves are booked together
// against the employee-side accounts.
func (b *Builder) taxSplits(calc *domain.TaxCalculation) []domain.Split {
	var splits []domain.Split

	if b.opts.SplitFICA {
		splits = append(splits,
			domain.Split{Account: b.accounts.TaxExpense.FICAEmployee, Amount: calc.FICAEmployee, Memo: "FICA-EE expense"},
			domain.Split{Account: b.accounts.TaxExpense.FICAEmployer, Amount: calc.FICAEmployer, Memo: "FICA-ER expense"},
		)
	} else {
		splits = append(splits,
			domain.Split{Account: b.accounts.TaxExpense.FICAEmployee, Amount: calc.FICAEmployee + calc.FICAEmployer, Memo: "FICA expense"},
		)
	}
	splits = append(splits,
		domain.Split{Account: b.accounts.TaxExpense.Federal, Amount: calc.Federal, Memo: "Federal expense"},
		domain.Split{Account: b.accounts.TaxExpense.State, Amount: calc.State, Memo: "State expense"},
	)

	if b.opts.SplitFICA {
		splits = append(splits,
			domain.Split{Account: b.accounts.TaxLiability.FICAEmployee, Amount: -calc.FICAEmployee, Memo: "FICA-EE liability"},
			domain.Split{Account: b.accounts.TaxLiability.FICAEmployer, Amount: -calc.FICAEmployer, Memo: "FICA-ER liability"},
		)
	} else {
		splits = append(splits,
			domain.Split{Account: b.accounts.TaxLiability.FICAEmployee, Amount: -(calc.FICAEmployee + calc.FICAEmployer), Memo: "FICA liability"},
		)
	}
	splits = append(splits,
		domain.Split{Account: b.accounts.TaxLiability.Federal, Amount: -calc.Federal, Memo: "Federal liability"},
		domain.Split{Account: b.accounts.TaxLiability.State, Amount: -calc.State, Memo: "State liability"},
	)

	return splits
}

// FeeEntry builds the two-split entry for a platform (billing) fee.
func (b *Builder) FeeEntry(txn *domain.Transaction) *domain.JournalEntry {
	amount := math.Abs(txn.Net)

	description := txn.Description
	if description == "" {
		description = "Platform billing fee"
	}

	return &domain.JournalEntry{
		Date:        txn.Date,
		Description: description,
		Splits: []domain.Split{
			{Account: b.accounts.ProcessorBalance, Amount: -amount, Memo: "Billing fee"},
			{Account: b.accounts.BillingFees, Amount: amount, Memo: txn.Description},
		},
	}
}

// PayoutEntry builds the entry for a payout: the full amount leaves the
// processor balance, the withheld portion lands in the withholding asset
// accounts, and the remainder goes to operating.
func (b *Builder) PayoutEntry(txn *domain.Transaction, taxes ledger.PayoutTaxes) *domain.JournalEntry {
	amount := math.Abs(txn.Net)
	operating := amount - taxes.Total

	splits := []domain.Split{
		{Account: b.accounts.ProcessorBalance, Amount: -amount, Memo: "Payout to bank"},
		{Account: b.accounts.Operating, Amount: operating, Memo: "Net after withholding"},
	}

	ficaEmployee, ficaEmployer := taxes.FICAEmployee, taxes.FICAEmployer
	ficaEmployeeMemo := "FICA-EE withholding"
	if !b.opts.SplitFICA {
		ficaEmployee, ficaEmployer = ficaEmployee+ficaEmployer, 0
		ficaEmployeeMemo = "FICA withholding"
	}

	if ficaEmployee > 0 {
		splits = append(splits, domain.Split{
			Account: b.accounts.Withholding.FICAEmployee, Amount: ficaEmployee, Memo: ficaEmployeeMemo,
		})
	}
	if ficaEmployer > 0 {
		splits = append(splits, domain.Split{
			Account: b.accounts.Withholding.FICAEmployer, Amount: ficaEmployer, Memo: "FICA-ER withholding",
		})
	}
	if taxes.Federal > 0 {
		splits = append(splits, domain.Split{
			Account: b.accounts.Withholding.Federal, Amount: taxes.Federal, Memo: "Federal withholding",
		})
	}
	if taxes.State > 0 {
		splits = append(splits, domain.Split{
			Account: b.accounts.Withholding.State, Amount: taxes.State, Memo: "State withholding",
		})
	}

	return &domain.JournalEntry{
		Date:        txn.Date,
		Description: "Processor payout",
		Splits:      splits,
	}
}

func revenueDescription(txn *domain.Transaction) string {
	label := "Revenue"
	switch txn.IncomeCategory {
	case domain.CategoryInvoice:
		label = "Invoice"
	case domain.CategorySubscription:
		label = "Subscription"
	case domain.CategoryOther:
		label = "Other"
	}
	if txn.Description == "" {
		return label
	}
	return label + ": " + txn.Description
}
