package enums

// StarsTransactionKind classifies star ledger rows.
type StarsTransactionKind string

const (
	StarsTransactionKindEarn StarsTransactionKind = "EARN"
)

var validStarsTransactionKinds = []StarsTransactionKind{
	StarsTransactionKindEarn,
}

func (v StarsTransactionKind) String() string {
	return string(v)
}

func (v StarsTransactionKind) IsValid() bool {
	return member(validStarsTransactionKinds, v)
}

func ParseStarsTransactionKind(value string) (StarsTransactionKind, error) {
	return parse(validStarsTransactionKinds, value, "stars transaction kind")
}
