package restaurants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

// Repository handles restaurant and top-up package persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to restaurant operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create persists a new restaurant row.
func (r *Repository) Create(ctx context.Context, restaurant *models.Restaurant) error {
	return r.db.WithContext(ctx).Create(restaurant).Error
}

// FindByID loads a restaurant by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&restaurant).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// FindByOwner returns the owner's restaurants, oldest first.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByQRCode matches code against both per-restaurant codes.
func (r *Repository) FindByQRCode(ctx context.Context, code string) (*models.Restaurant, enums.QRType, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).
		Where("qr_code_meal = ? OR qr_code_drink = ?", code, code).
		First(&restaurant).Error; err != nil {
		return nil, "", err
	}
	if restaurant.QRCodeDrink == code {
		return &restaurant, enums.QRTypeDrink, nil
	}
	return &restaurant, enums.QRTypeMeal, nil
}

// FindByIDs loads restaurants keyed by id. Missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Restaurant, error) {
	out := make(map[uuid.UUID]models.Restaurant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Restaurant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// UpdateFields applies a column map to one restaurant. Unknown ids return gorm.ErrRecordNotFound.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Restaurant{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List pages restaurants newest-first. activeOnly hides restaurants without a valid subscription.
func (r *Repository) List(ctx context.Context, params pagination.Params, activeOnly bool) ([]models.Restaurant, error) {
	q := r.db.WithContext(ctx).Model(&models.Restaurant{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []models.Restaurant
	if err := q.Scopes(pagination.Keyset(cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreatePackage persists a top-up package.
func (r *Repository) CreatePackage(ctx context.Context, pkg *models.TopUpPackage) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

// ListPackages returns a restaurant's packages, cheapest first.
func (r *Repository) ListPackages(ctx context.Context, restaurantID uuid.UUID, activeOnly bool) ([]models.TopUpPackage, error) {
	q := r.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.TopUpPackage
	if err := q.Order("amount ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindActivePackage loads an active package that belongs to restaurantID.
func (r *Repository) FindActivePackage(ctx context.Context, restaurantID, packageID uuid.UUID) (*models.TopUpPackage, error) {
	var pkg models.TopUpPackage
	if err := r.db.WithContext(ctx).
		Where("id = ? AND restaurant_id = ? AND is_active = ?", packageID, restaurantID, true).
		First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

// DeactivatePackage hides a package from future top-ups. Packages of other
// restaurants are reported as gorm.ErrRecordNotFound.
func (r *Repository) DeactivatePackage(ctx context.Context, restaurantID, packageID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.TopUpPackage{}).
		Where("id = ? AND restaurant_id = ?", packageID, restaurantID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
