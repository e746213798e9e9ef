package balances

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
)

type leg struct {
	restaurantID uuid.UUID
	amount       decimal.Decimal
}

func validateAmount(currency enums.CurrencyType, amount decimal.Decimal) error {
	if !currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "currencyType must be one of balance, stars_meal, stars_drink")
	}
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if currency.IsStars() && !amount.IsInteger() {
		return pkgerrors.New(pkgerrors.CodeValidation, "star amounts must be whole numbers")
	}
	if !currency.IsStars() && !amount.Round(2).Equal(amount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount allows at most two decimal places")
	}
	return nil
}

func counter(row *models.UserRestaurantBalance, currency enums.CurrencyType) decimal.Decimal {
	switch currency {
	case enums.CurrencyTypeStarsMeal:
		return decimal.NewFromInt(row.StarsMeal)
	case enums.CurrencyTypeStarsDrink:
		return decimal.NewFromInt(row.StarsDrink)
	default:
		return row.Balance
	}
}

func setCounter(row *models.UserRestaurantBalance, currency enums.CurrencyType, value decimal.Decimal) {
	switch currency {
	case enums.CurrencyTypeStarsMeal:
		row.StarsMeal = value.IntPart()
	case enums.CurrencyTypeStarsDrink:
		row.StarsDrink = value.IntPart()
	default:
		row.Balance = value
	}
}

// planDebit drains rows greedily in the order given until amount is
// covered. Rows at zero are skipped and never produce a leg.
func planDebit(rows []*models.UserRestaurantBalance, currency enums.CurrencyType, amount decimal.Decimal) ([]leg, error) {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(counter(row, currency))
	}
	if total.LessThan(amount) {
		return nil, insufficient(currency).WithDetails(map[string]any{
			"available": total.String(),
			"requested": amount.String(),
		})
	}

	remaining := amount
	var legs []leg
	for _, row := range rows {
		if !remaining.IsPositive() {
			break
		}
		have := counter(row, currency)
		if !have.IsPositive() {
			continue
		}
		take := decimal.Min(have, remaining)
		legs = append(legs, leg{restaurantID: row.RestaurantID, amount: take})
		remaining = remaining.Sub(take)
	}
	return legs, nil
}

func insufficient(currency enums.CurrencyType) *pkgerrors.Error {
	switch currency {
	case enums.CurrencyTypeStarsMeal:
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "Insufficient meal stars")
	case enums.CurrencyTypeStarsDrink:
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "Insufficient drink stars")
	default:
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "Insufficient balance")
	}
}

func legDTOs(legs []leg) []LegDTO {
	out := make([]LegDTO, 0, len(legs))
	for _, l := range legs {
		out = append(out, LegDTO{RestaurantID: l.restaurantID, Amount: l.amount})
	}
	return out
}
