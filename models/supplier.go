package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
)

type Supplier struct {
	ID            int       `gorm:"primary_key" json:"id"`
	VendorId      string    `gorm:"index;not null" json:"vendor_id" binding:"required"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	LicenseNumber string    `gorm:"size:100" json:"license_number"`
	Email         string    `gorm:"size:100" json:"email"`
	Phone         string    `gorm:"size:20" json:"phone"`
	ContactName   string    `gorm:"size:100" json:"contact_name"`
	Address       string    `gorm:"type:text" json:"address"`
	Notes         string    `gorm:"type:text" json:"notes"`
	IsActive      *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name          string `json:"name" binding:"required"`
	LicenseNumber string `json:"license_number"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	ContactName   string `json:"contact_name"`
	Address       string `json:"address"`
	Notes         string `json:"notes"`
}

// implements methods for pagination
type SuppliersEdge Edge[Supplier]
type SuppliersConnection struct {
	PageInfo *PageInfo        `json:"pageInfo"`
	Edges    []*SuppliersEdge `json:"edges"`
}

// node
// returns decoded curosr string
func (s Supplier) GetCursor() string {
	return s.CreatedAt.String()
}

// validate input for both create & update. (id = 0 for create)

func (input *NewSupplier) validate(ctx context.Context, vendorId string, id int) error {
	// validate unique name
	if err := utils.ValidateUnique[Supplier](ctx, vendorId, "name", input.Name, id); err != nil {
		return err
	}
	// validate email
	if input.Email != "" && len(input.Email) > 0 {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email address")
		}
		if err := utils.ValidateUnique[Supplier](ctx, vendorId, "email", input.Email, id); err != nil {
			return err
		}
	}
	// validate phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		input.Phone = utils.FormatPhoneNumber(input.Phone, utils.CountryCode)
		if err := utils.ValidateUnique[Supplier](ctx, vendorId, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	if err := input.validate(ctx, vendorId, 0); err != nil {
		return nil, err
	}

	supplier := Supplier{
		VendorId:      vendorId,
		Name:          input.Name,
		LicenseNumber: input.LicenseNumber,
		Email:         input.Email,
		Phone:         input.Phone,
		ContactName:   input.ContactName,
		Address:       input.Address,
		Notes:         input.Notes,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&supplier).Error
	if err != nil {
		return nil, err
	}

	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	if err := input.validate(ctx, vendorId, id); err != nil {
		return nil, err
	}

	supplier, err := utils.FetchModel[Supplier](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(supplier).
		Updates(map[string]interface{}{
			"Name":          input.Name,
			"LicenseNumber": input.LicenseNumber,
			"Email":         input.Email,
			"Phone":         input.Phone,
			"ContactName":   input.ContactName,
			"Address":       input.Address,
			"Notes":         input.Notes,
		}).Error
	if err != nil {
		return nil, err
	}

	return supplier, nil
}

func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	result, err := utils.FetchModel[Supplier](ctx, vendorId, id)
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	count, err := utils.ResourceCountWhere[PurchaseOrder](ctx, vendorId, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("purchase order associated with supplier exists")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return GetResource[Supplier](ctx, id)
}

func GetSuppliers(ctx context.Context, name *string) ([]*Supplier, error) {
	db := config.GetDB()
	var results []*Supplier

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveSupplier(ctx context.Context, id int, isActive bool) (*Supplier, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	return ToggleActiveModel[Supplier](ctx, vendorId, id, isActive)
}

func PaginateSupplier(ctx context.Context, limit *int, after *string,
	name *string, phone *string, email *string, isActive *bool) (*SuppliersConnection, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	pageSize := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if phone != nil && *phone != "" {
		dbCtx.Where("phone LIKE ?", "%"+*phone+"%")
	}
	if email != nil && *email != "" {
		dbCtx.Where("email LIKE ?", "%"+*email+"%")
	}
	if isActive != nil {
		dbCtx.Where("is_active = ?", isActive)
	}
	edges, pageInfo, err := FetchPageCompositeCursor[Supplier](dbCtx, pageSize, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var suppliersConnection SuppliersConnection
	suppliersConnection.PageInfo = pageInfo
	for _, edge := range edges {
		supplierEdge := SuppliersEdge(edge)
		suppliersConnection.Edges = append(suppliersConnection.Edges, &supplierEdge)
	}
	return &suppliersConnection, err
}
