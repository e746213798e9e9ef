package groups

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
)

// Service manages the single group a restaurant may own.
type Service interface {
	Create(ctx context.Context, ownerID, restaurantID uuid.UUID, input CreateGroupInput) (*GroupDTO, error)
	AddMember(ctx context.Context, ownerID, restaurantID, memberID uuid.UUID) (*GroupDTO, error)
	RemoveMember(ctx context.Context, ownerID, restaurantID, memberID uuid.UUID) (*GroupDTO, error)
	Mine(ctx context.Context, ownerID, restaurantID uuid.UUID) (*GroupDTO, error)
}

// ServiceParams packages the dependencies for the group service.
type ServiceParams struct {
	DB *db.Client
}

type service struct {
	db *db.Client
}

// NewService builds a group service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &service{db: params.DB}, nil
}

func (s *service) Create(ctx context.Context, ownerID, restaurantID uuid.UUID, input CreateGroupInput) (*GroupDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	var out *GroupDTO
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if _, err := ownedRestaurant(ctx, tx, ownerID, restaurantID); err != nil {
			return err
		}
		if err := ensureUngrouped(ctx, repo, restaurantID); err != nil {
			return err
		}

		group := &models.RestaurantGroup{Name: name, OwnerRestaurantID: restaurantID}
		if err := repo.Create(ctx, group); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "restaurant already owns a group")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create group")
		}
		dto, err := load(ctx, repo, group)
		out = dto
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) AddMember(ctx context.Context, ownerID, restaurantID, memberID uuid.UUID) (*GroupDTO, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurantId is required")
	}
	if memberID == restaurantID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a restaurant cannot join its own group")
	}

	var out *GroupDTO
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		group, err := ownedGroup(ctx, tx, repo, ownerID, restaurantID)
		if err != nil {
			return err
		}
		if _, err := restaurants.NewRepository(tx).FindByID(ctx, memberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member restaurant")
		}
		if err := ensureUngrouped(ctx, repo, memberID); err != nil {
			return err
		}
		if err := repo.AddMember(ctx, group.ID, memberID); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "restaurant already belongs to a group")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add group member")
		}
		dto, err := load(ctx, repo, group)
		out = dto
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) RemoveMember(ctx context.Context, ownerID, restaurantID, memberID uuid.UUID) (*GroupDTO, error) {
	var out *GroupDTO
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		group, err := ownedGroup(ctx, tx, repo, ownerID, restaurantID)
		if err != nil {
			return err
		}
		if err := repo.RemoveMember(ctx, group.ID, memberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "restaurant is not a member of this group")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove group member")
		}
		dto, err := load(ctx, repo, group)
		out = dto
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Mine(ctx context.Context, ownerID, restaurantID uuid.UUID) (*GroupDTO, error) {
	conn := s.db.DB().WithContext(ctx)
	repo := NewRepository(conn)
	group, err := ownedGroup(ctx, conn, repo, ownerID, restaurantID)
	if err != nil {
		return nil, err
	}
	return load(ctx, repo, group)
}

func ownedRestaurant(ctx context.Context, tx *gorm.DB, ownerID, restaurantID uuid.UUID) (*models.Restaurant, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no active restaurant selected")
	}
	restaurant, err := restaurants.NewRepository(tx).FindByID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
	}
	if restaurant.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant belongs to another owner")
	}
	return restaurant, nil
}

func ownedGroup(ctx context.Context, tx *gorm.DB, repo *Repository, ownerID, restaurantID uuid.UUID) (*models.RestaurantGroup, error) {
	if _, err := ownedRestaurant(ctx, tx, ownerID, restaurantID); err != nil {
		return nil, err
	}
	group, err := repo.FindByOwner(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant does not own a group")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	return group, nil
}

// ensureUngrouped enforces that a restaurant sits in at most one group, as owner or member.
func ensureUngrouped(ctx context.Context, repo *Repository, restaurantID uuid.UUID) error {
	if _, err := repo.FindByOwner(ctx, restaurantID); err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "restaurant already owns a group")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check group ownership")
	}
	if _, err := repo.FindMembership(ctx, restaurantID); err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "restaurant already belongs to a group")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check group membership")
	}
	return nil
}

func load(ctx context.Context, repo *Repository, group *models.RestaurantGroup) (*GroupDTO, error) {
	rows, err := repo.ListRestaurants(ctx, group.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list group restaurants")
	}
	return toDTO(group, rows), nil
}
