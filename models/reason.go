package models

import (
	"context"
	"errors"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
)

// Reason is the adjustment-reason catalog shown in the mobile picker. The
// free-text reason stored on the audit row stays authoritative.
type Reason struct {
	ID        int       `gorm:"primary_key" json:"id"`
	VendorId  string    `gorm:"primary_key;autoIncrement:false;not null" json:"vendor_id" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReason struct {
	Name string `json:"name" binding:"required"`
}

func (input *NewReason) validate(ctx context.Context, vendorId string, id int) error {
	if err := utils.ValidateUnique[Reason](ctx, vendorId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateReason(ctx context.Context, input *NewReason) (*Reason, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	if err := input.validate(ctx, vendorId, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	reason := Reason{
		VendorId: vendorId,
		Name:     input.Name,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&reason).Error; err != nil {
		return nil, err
	}

	return &reason, nil
}

func UpdateReason(ctx context.Context, id int, input *NewReason) (*Reason, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	reason, err := utils.FetchModel[Reason](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, vendorId, id); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&reason).Updates(map[string]interface{}{
		"Name": input.Name,
	}).Error; err != nil {
		return nil, err
	}

	return reason, nil
}

func DeleteReason(ctx context.Context, id int) (*Reason, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	reason, err := utils.FetchModel[Reason](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}
	if err = db.WithContext(ctx).Delete(&reason).Error; err != nil {
		return nil, err
	}
	return reason, nil
}

func ToggleActiveReason(ctx context.Context, id int, isActive bool) (*Reason, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	return ToggleActiveModel[Reason](ctx, vendorId, id, isActive)
}

func GetReason(ctx context.Context, id int) (*Reason, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	reason, err := utils.FetchModel[Reason](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}
	return reason, nil

}

func ListReason(ctx context.Context, name *string) ([]*Reason, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	var results []*Reason

	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
