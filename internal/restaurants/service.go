package restaurants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/geo"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
	"github.com/angelmondragon/tablestars-backend/pkg/security"
)

const qrRotateAttempts = 3

type restaurantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Restaurant, error)
	FindByQRCode(ctx context.Context, code string) (*models.Restaurant, enums.QRType, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	List(ctx context.Context, params pagination.Params, activeOnly bool) ([]models.Restaurant, error)
	CreatePackage(ctx context.Context, pkg *models.TopUpPackage) error
	ListPackages(ctx context.Context, restaurantID uuid.UUID, activeOnly bool) ([]models.TopUpPackage, error)
	DeactivatePackage(ctx context.Context, restaurantID, packageID uuid.UUID) error
}

// Service exposes restaurant, QR and package operations.
type Service interface {
	Mine(ctx context.Context, ownerID, restaurantID uuid.UUID) (*OwnerRestaurantDTO, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]OwnerRestaurantDTO, error)
	UpdateMine(ctx context.Context, ownerID, restaurantID uuid.UUID, input UpdateRestaurantInput) (*OwnerRestaurantDTO, error)
	RotateQR(ctx context.Context, ownerID, restaurantID uuid.UUID, qrType enums.QRType) (*OwnerRestaurantDTO, error)
	ListPackages(ctx context.Context, ownerID, restaurantID uuid.UUID) ([]PackageDTO, error)
	CreatePackage(ctx context.Context, ownerID, restaurantID uuid.UUID, input CreatePackageInput) (*PackageDTO, error)
	DeactivatePackage(ctx context.Context, ownerID, restaurantID, packageID uuid.UUID) error
	ListActive(ctx context.Context, params pagination.Params) (pagination.Page[RestaurantDTO], error)
	ListAll(ctx context.Context, params pagination.Params) (pagination.Page[RestaurantDTO], error)
	Detail(ctx context.Context, restaurantID uuid.UUID) (*RestaurantDetailDTO, error)
	ResolveQR(ctx context.Context, code string) (*models.Restaurant, enums.QRType, error)
}

type service struct {
	repo      restaurantRepository
	newQRCode func(prefix string) (string, error)
}

// NewService builds a restaurant service backed by repo.
func NewService(repo restaurantRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("restaurant repository required")
	}
	return &service{repo: repo, newQRCode: security.NewQRCode}, nil
}

func (s *service) Mine(ctx context.Context, ownerID, restaurantID uuid.UUID) (*OwnerRestaurantDTO, error) {
	restaurant, err := s.owned(ctx, ownerID, restaurantID)
	if err != nil {
		return nil, err
	}
	return ownerFromModel(restaurant), nil
}

func (s *service) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]OwnerRestaurantDTO, error) {
	rows, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owned restaurants")
	}
	out := make([]OwnerRestaurantDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ownerFromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) UpdateMine(ctx context.Context, ownerID, restaurantID uuid.UUID, input UpdateRestaurantInput) (*OwnerRestaurantDTO, error) {
	restaurant, err := s.owned(ctx, ownerID, restaurantID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
		}
		fields["name"] = name
	}
	if input.Address != nil {
		address := strings.TrimSpace(*input.Address)
		if address == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "address cannot be blank")
		}
		fields["address"] = address
	}
	if input.Description != nil {
		fields["description"] = trimmedOrNil(input.Description)
	}
	if input.ImageURL != nil {
		fields["image_url"] = trimmedOrNil(input.ImageURL)
	}
	if input.Latitude != nil || input.Longitude != nil {
		point := geo.Point{Lat: restaurant.Latitude, Lng: restaurant.Longitude}
		if input.Latitude != nil {
			point.Lat = *input.Latitude
		}
		if input.Longitude != nil {
			point.Lng = *input.Longitude
		}
		if err := point.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location")
		}
		fields["latitude"] = point.Lat
		fields["longitude"] = point.Lng
	}

	if err := s.repo.UpdateFields(ctx, restaurant.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update restaurant")
	}
	return s.Mine(ctx, ownerID, restaurantID)
}

func (s *service) RotateQR(ctx context.Context, ownerID, restaurantID uuid.UUID, qrType enums.QRType) (*OwnerRestaurantDTO, error) {
	if !qrType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type must be meal or drink")
	}
	restaurant, err := s.owned(ctx, ownerID, restaurantID)
	if err != nil {
		return nil, err
	}

	column := "qr_code_meal"
	if qrType == enums.QRTypeDrink {
		column = "qr_code_drink"
	}
	for attempt := 1; ; attempt++ {
		code, err := s.newQRCode(qrType.String())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr code")
		}
		err = s.repo.UpdateFields(ctx, restaurant.ID, map[string]any{column: code})
		if err == nil {
			break
		}
		if !db.IsUniqueViolation(err, "") || attempt >= qrRotateAttempts {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate qr code")
		}
	}
	return s.Mine(ctx, ownerID, restaurantID)
}

func (s *service) ListPackages(ctx context.Context, ownerID, restaurantID uuid.UUID) ([]PackageDTO, error) {
	if _, err := s.owned(ctx, ownerID, restaurantID); err != nil {
		return nil, err
	}
	return s.packages(ctx, restaurantID, false)
}

func (s *service) CreatePackage(ctx context.Context, ownerID, restaurantID uuid.UUID, input CreatePackageInput) (*PackageDTO, error) {
	if _, err := s.owned(ctx, ownerID, restaurantID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if input.Bonus.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bonus cannot be negative")
	}
	if input.Amount.Exponent() < -2 || input.Bonus.Exponent() < -2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amounts allow at most two decimal places")
	}

	pkg := &models.TopUpPackage{
		RestaurantID: restaurantID,
		Name:         name,
		Amount:       input.Amount.Round(2),
		Bonus:        input.Bonus.Round(2),
		IsActive:     true,
	}
	if err := s.repo.CreatePackage(ctx, pkg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create package")
	}
	dto := packageFromModel(*pkg)
	return &dto, nil
}

func (s *service) DeactivatePackage(ctx context.Context, ownerID, restaurantID, packageID uuid.UUID) error {
	if _, err := s.owned(ctx, ownerID, restaurantID); err != nil {
		return err
	}
	if err := s.repo.DeactivatePackage(ctx, restaurantID, packageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate package")
	}
	return nil
}

func (s *service) ListActive(ctx context.Context, params pagination.Params) (pagination.Page[RestaurantDTO], error) {
	return s.list(ctx, params, true)
}

func (s *service) ListAll(ctx context.Context, params pagination.Params) (pagination.Page[RestaurantDTO], error) {
	return s.list(ctx, params, false)
}

func (s *service) Detail(ctx context.Context, restaurantID uuid.UUID) (*RestaurantDetailDTO, error) {
	restaurant, err := s.load(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if !restaurant.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
	}
	packages, err := s.packages(ctx, restaurantID, true)
	if err != nil {
		return nil, err
	}
	return &RestaurantDetailDTO{RestaurantDTO: *FromModel(restaurant), Packages: packages}, nil
}

// ResolveQR maps a scanned code onto its restaurant and code type.
func (s *service) ResolveQR(ctx context.Context, code string) (*models.Restaurant, enums.QRType, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "qrCode is required")
	}
	restaurant, qrType, err := s.repo.FindByQRCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeInvalidCode, "Invalid QR code")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve qr code")
	}
	return restaurant, qrType, nil
}

func (s *service) list(ctx context.Context, params pagination.Params, activeOnly bool) (pagination.Page[RestaurantDTO], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[RestaurantDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, params, activeOnly)
	if err != nil {
		return pagination.Page[RestaurantDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list restaurants")
	}
	dtos := make([]RestaurantDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	return pagination.NewPage(dtos, params.Limit, func(r RestaurantDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	}), nil
}

func (s *service) packages(ctx context.Context, restaurantID uuid.UUID, activeOnly bool) ([]PackageDTO, error) {
	rows, err := s.repo.ListPackages(ctx, restaurantID, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list packages")
	}
	out := make([]PackageDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, packageFromModel(row))
	}
	return out, nil
}

func (s *service) owned(ctx context.Context, ownerID, restaurantID uuid.UUID) (*models.Restaurant, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no active restaurant selected")
	}
	restaurant, err := s.load(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant belongs to another owner")
	}
	return restaurant, nil
}

func (s *service) load(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	restaurant, err := s.repo.FindByID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
	}
	return restaurant, nil
}

