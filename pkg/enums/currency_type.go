package enums

// CurrencyType names one of the three counters on a balance row.
type CurrencyType string

const (
	CurrencyTypeBalance    CurrencyType = "balance"
	CurrencyTypeStarsMeal  CurrencyType = "stars_meal"
	CurrencyTypeStarsDrink CurrencyType = "stars_drink"
)

var validCurrencyTypes = []CurrencyType{
	CurrencyTypeBalance,
	CurrencyTypeStarsMeal,
	CurrencyTypeStarsDrink,
}

func (v CurrencyType) String() string {
	return string(v)
}

func (v CurrencyType) IsValid() bool {
	return member(validCurrencyTypes, v)
}

func ParseCurrencyType(value string) (CurrencyType, error) {
	return parse(validCurrencyTypes, value, "currency type")
}

// IsStars reports whether the currency is counted in whole stars.
func (v CurrencyType) IsStars() bool {
	return v == CurrencyTypeStarsMeal || v == CurrencyTypeStarsDrink
}
