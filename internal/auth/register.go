package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/internal/users"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/security"
)

const emailConstraint = "users_email_key"

// Register creates the account (and for owners the restaurant) in one
// transaction, then signs the caller in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "firstName and lastName are required")
	}
	if !req.AccountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accountType must be user or restaurant")
	}
	role := enums.RoleUser
	if req.AccountType == enums.AccountTypeRestaurant {
		if req.Restaurant == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant details are required")
		}
		if err := req.Restaurant.Location().Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant location")
		}
		if strings.TrimSpace(req.Restaurant.Name) == "" || strings.TrimSpace(req.Restaurant.Address) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant name and address are required")
		}
		role = enums.RoleRestaurantOwner
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
	}
	personalQR, err := security.NewQRCode("user")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr code")
	}

	var user *models.User
	var owned []models.Restaurant
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := users.NewRepository(tx)
		if _, err := usersRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}

		created, err := usersRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Phone:        req.Phone,
			Role:         role,
			QRCode:       personalQR,
		})
		if db.IsUniqueViolation(err, emailConstraint) {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		user = created

		if role != enums.RoleRestaurantOwner {
			return nil
		}
		meal, err := security.NewQRCode(string(enums.QRTypeMeal))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr code")
		}
		drink, err := security.NewQRCode(string(enums.QRTypeDrink))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr code")
		}
		restaurant := req.Restaurant.ToModel(user.ID, meal, drink)
		if err := restaurants.NewRepository(tx).Create(ctx, restaurant); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create restaurant")
		}
		owned = append(owned, *restaurant)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "account_type", req.AccountType.String()), "auth.register.created")

	var active *uuid.UUID
	if len(owned) > 0 {
		active = &owned[0].ID
	}
	return s.issue(ctx, user, owned, active, "")
}
