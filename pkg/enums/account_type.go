package enums

// AccountType selects what registration creates.
type AccountType string

const (
	AccountTypeUser       AccountType = "user"
	AccountTypeRestaurant AccountType = "restaurant"
)

var validAccountTypes = []AccountType{
	AccountTypeUser,
	AccountTypeRestaurant,
}

func (v AccountType) String() string {
	return string(v)
}

func (v AccountType) IsValid() bool {
	return member(validAccountTypes, v)
}

func ParseAccountType(value string) (AccountType, error) {
	return parse(validAccountTypes, value, "account type")
}
