package credit

// Draw is the split of one consumption across the two buckets.
type Draw struct {
	Amount        int64 `json:"amount"`
	FromMonthly   int64 `json:"from_monthly"`
	FromPurchased int64 `json:"from_purchased"`
}

// Plan computes how amount is drawn from a: the monthly allowance first,
// the purchased balance for the rest. It reports false, and a zero Draw,
// when the account cannot cover amount.
func Plan(a *Account, amount int64) (Draw, bool) {
	if amount <= 0 || a.Available() < amount {
		return Draw{}, false
	}

	fromMonthly := min(amount, a.MonthlyAvailable())
	return Draw{
		Amount:        amount,
		FromMonthly:   fromMonthly,
		FromPurchased: amount - fromMonthly,
	}, true
}

// Apply returns a copy of a with d applied. The caller must have obtained d
// from Plan on the same balance.
func (d Draw) Apply(a Account) Account {
	a.MonthlyUsed += d.FromMonthly
	a.PurchasedBalance -= d.FromPurchased
	a.TotalConsumed += d.Amount
	return a
}

// Fits reports whether d can still be applied to a without driving either
// bucket negative. Stores evaluate the same predicate atomically.
func (d Draw) Fits(a *Account) bool {
	return a.MonthlyUsed+d.FromMonthly <= a.MonthlyAllowance &&
		a.PurchasedBalance >= d.FromPurchased
}
