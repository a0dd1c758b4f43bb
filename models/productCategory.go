package models

import (
	"context"
	"errors"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
)

type ProductCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	VendorId  string    `gorm:"index;not null" json:"vendor_id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductCategory struct {
	Name string `json:"name" binding:"required"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewProductCategory) validate(ctx context.Context, vendorId string, id int) error {
	// name
	if err := utils.ValidateUnique[ProductCategory](ctx, vendorId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateProductCategory(ctx context.Context, input *NewProductCategory) (*ProductCategory, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	if err := input.validate(ctx, vendorId, 0); err != nil {
		return nil, err
	}

	category := ProductCategory{
		VendorId: vendorId,
		Name:     input.Name,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&category).Error
	if err != nil {
		return nil, err
	}

	return &category, nil
}

func UpdateProductCategory(ctx context.Context, id int, input *NewProductCategory) (*ProductCategory, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	if err := input.validate(ctx, vendorId, id); err != nil {
		return nil, err
	}

	category, err := utils.FetchModel[ProductCategory](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&category).Updates(map[string]interface{}{
		"Name": input.Name,
	}).Error
	if err != nil {
		return nil, err
	}
	return category, nil
}

func DeleteProductCategory(ctx context.Context, id int) (*ProductCategory, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	db := config.GetDB()
	result, err := utils.FetchModel[ProductCategory](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}

	// don't delete if productCategory is used by product
	count, err := utils.ResourceCountWhere[Product](ctx, vendorId, "category_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used by product")
	}

	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetProductCategory(ctx context.Context, id int) (*ProductCategory, error) {

	return GetResource[ProductCategory](ctx, id)
}

func GetProductCategories(ctx context.Context, name *string) ([]*ProductCategory, error) {

	db := config.GetDB()
	var results []*ProductCategory

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

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

func ToggleActiveProductCategory(ctx context.Context, id int, isActive bool) (*ProductCategory, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	return ToggleActiveModel[ProductCategory](ctx, vendorId, id, isActive)
}
