package groups

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
)

// MemberDTO is the slice of restaurant data shown inside a group.
type MemberDTO struct {
	RestaurantID uuid.UUID `json:"restaurantId"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"isActive"`
	IsOwner      bool      `json:"isOwner"`
}

// GroupDTO is a restaurant group with its owner listed first among members.
type GroupDTO struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	OwnerRestaurantID uuid.UUID   `json:"ownerRestaurantId"`
	Members           []MemberDTO `json:"members"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// CreateGroupInput names a new group.
type CreateGroupInput struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// AddMemberInput picks the restaurant to add.
type AddMemberInput struct {
	RestaurantID uuid.UUID `json:"restaurantId" validate:"required"`
}

func toDTO(group *models.RestaurantGroup, restaurants []models.Restaurant) *GroupDTO {
	dto := &GroupDTO{
		ID:                group.ID,
		Name:              group.Name,
		OwnerRestaurantID: group.OwnerRestaurantID,
		Members:           make([]MemberDTO, 0, len(restaurants)),
		CreatedAt:         group.CreatedAt,
	}
	for _, r := range restaurants {
		member := MemberDTO{
			RestaurantID: r.ID,
			Name:         r.Name,
			IsActive:     r.IsActive,
			IsOwner:      r.ID == group.OwnerRestaurantID,
		}
		if member.IsOwner {
			dto.Members = append([]MemberDTO{member}, dto.Members...)
			continue
		}
		dto.Members = append(dto.Members, member)
	}
	return dto
}
