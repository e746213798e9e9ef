package enums

// Currency is the ISO code a plan is billed in.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
}

func (v Currency) String() string {
	return string(v)
}

func (v Currency) IsValid() bool {
	return member(validCurrencies, v)
}

func ParseCurrency(value string) (Currency, error) {
	return parse(validCurrencies, value, "currency")
}
