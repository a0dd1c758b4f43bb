package models

import (
	"context"

	"github.com/greenstem/pos_backend/utils"
	"gorm.io/gorm"
)

func CreateDefaultLocation(tx *gorm.DB, ctx context.Context, input *NewLocation, vendorId string) (*Location, error) {

	location := Location{
		VendorId: vendorId,
		Name:     input.Name,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}

	if err := tx.WithContext(ctx).Create(&location).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return &location, nil
}

func CreateDefaultOwner(tx *gorm.DB, ctx context.Context, vendorId string, email string, name string) (*User, error) {

	hashedPassword, err := utils.HashPassword("default123")
	if err != nil {
		return &User{}, err
	}

	owner := User{
		VendorId: vendorId,
		Username: email,
		Name:     name,
		Email:    &email,
		Password: string(hashedPassword),
		IsActive: utils.NewTrue(),
		Role:     UserRoleOwner,
	}
	if err := tx.WithContext(ctx).Create(&owner).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return &owner, nil
}

func CreateDefaultReasons(tx *gorm.DB, ctx context.Context, vendorId string) ([]Reason, error) {

	defaultNames := []string{
		"Physical count correction",
		"Damaged in storage",
		"Expired product",
		"Theft / loss",
		"Customer return",
	}

	var reasons []Reason
	for _, name := range defaultNames {
		reasons = append(reasons, Reason{
			VendorId: vendorId,
			Name:     name,
			IsActive: utils.NewTrue(),
		})
	}

	if err := tx.WithContext(ctx).Create(&reasons).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return reasons, nil
}
