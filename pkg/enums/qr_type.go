package enums

// QRType identifies which per-restaurant code was scanned.
type QRType string

const (
	QRTypeMeal  QRType = "meal"
	QRTypeDrink QRType = "drink"
)

var validQRTypes = []QRType{
	QRTypeMeal,
	QRTypeDrink,
}

func (v QRType) String() string {
	return string(v)
}

func (v QRType) IsValid() bool {
	return member(validQRTypes, v)
}

func ParseQRType(value string) (QRType, error) {
	return parse(validQRTypes, value, "qr type")
}

// StarsCurrency returns the star counter credited by a scan of this type.
func (v QRType) StarsCurrency() CurrencyType {
	if v == QRTypeDrink {
		return CurrencyTypeStarsDrink
	}
	return CurrencyTypeStarsMeal
}
