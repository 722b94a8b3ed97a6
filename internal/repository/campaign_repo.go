package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"autobook/internal/model"
)

// CampaignRepository campaign repository interface
type CampaignRepository interface {
	// Create campaign
	Create(ctx context.Context, campaign *model.Campaign) error

	// Get campaign by ID
	GetByID(ctx context.Context, id uint64) (*model.Campaign, error)

	// List campaigns for a user
	ListByUser(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Campaign, int64, error)

	// Cancel campaign (active -> cancelled)
	Cancel(ctx context.Context, id uint64) (bool, error)

	// List IDs of all active campaigns (bloom filter seeding)
	ListActiveIDs(ctx context.Context) ([]uint64, error)
}

// campaignRepository campaign repository implementation
type campaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// Create creates a campaign
func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// GetByID gets a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id uint64) (*model.Campaign, error) {
	var campaign model.Campaign
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Not found is a business outcome, not an error
		}
		return nil, err
	}
	return &campaign, nil
}

// ListByUser lists campaigns for a user
func (r *campaignRepository) ListByUser(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Campaign, int64, error) {
	var campaigns []*model.Campaign
	var total int64

	offset := (page - 1) * pageSize

	db := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("user_id = ?", userID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&campaigns).Error

	return campaigns, total, err
}

// Cancel cancels a campaign. Returns false when the campaign was not active.
func (r *campaignRepository) Cancel(ctx context.Context, id uint64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND status = ?", id, model.CampaignStatusActive).
		Update("status", model.CampaignStatusCancelled)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListActiveIDs lists IDs of all active campaigns
func (r *campaignRepository) ListActiveIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("status = ?", model.CampaignStatusActive).
		Pluck("id", &ids).Error

	return ids, err
}
