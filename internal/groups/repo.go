package groups

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
)

// Repository handles restaurant group persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to group operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new group.
func (r *Repository) Create(ctx context.Context, group *models.RestaurantGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// FindByID loads a group by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RestaurantGroup, error) {
	var group models.RestaurantGroup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindByOwner loads the group owned by restaurantID.
func (r *Repository) FindByOwner(ctx context.Context, restaurantID uuid.UUID) (*models.RestaurantGroup, error) {
	var group models.RestaurantGroup
	if err := r.db.WithContext(ctx).Where("owner_restaurant_id = ?", restaurantID).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindMembership returns the membership row of restaurantID in any group.
func (r *Repository) FindMembership(ctx context.Context, restaurantID uuid.UUID) (*models.RestaurantGroupMember, error) {
	var member models.RestaurantGroupMember
	if err := r.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// AddMember joins restaurantID to groupID.
func (r *Repository) AddMember(ctx context.Context, groupID, restaurantID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(&models.RestaurantGroupMember{GroupID: groupID, RestaurantID: restaurantID}).Error
}

// RemoveMember drops restaurantID from groupID. Non-members return gorm.ErrRecordNotFound.
func (r *Repository) RemoveMember(ctx context.Context, groupID, restaurantID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND restaurant_id = ?", groupID, restaurantID).
		Delete(&models.RestaurantGroupMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MemberRestaurantIDs returns the owner restaurant plus every member, ascending by id.
func (r *Repository) MemberRestaurantIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	group, err := r.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	var memberIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.RestaurantGroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("restaurant_id", &memberIDs).Error; err != nil {
		return nil, err
	}

	ids := append([]uuid.UUID{group.OwnerRestaurantID}, memberIDs...)
	SortIDs(ids)
	return ids, nil
}

// ListRestaurants loads the owner and member restaurants of groupID.
func (r *Repository) ListRestaurants(ctx context.Context, groupID uuid.UUID) ([]models.Restaurant, error) {
	ids, err := r.MemberRestaurantIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	var rows []models.Restaurant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return bytes.Compare(rows[i].ID[:], rows[j].ID[:]) < 0 })
	return rows, nil
}

// SortIDs orders ids by their byte value, the order postgres uses for uuid columns.
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}
