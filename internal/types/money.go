// README: Common money value object used across modules.
package types

// DefaultCurrency applies when an order rate is given without a currency.
const DefaultCurrency = "USD"

// Money is an amount in minor units (cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) WithDefaultCurrency() Money {
	if m.Currency == "" {
		m.Currency = DefaultCurrency
	}
	return m
}
