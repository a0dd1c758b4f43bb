// seed-dev provisions one or more demo dispensaries for local development:
// vendor with owner login, a back-of-house location, a cannabis category tree
// and a small product catalog. Safe to re-run; everything is find-or-create.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "dev-store"
	}
	return out
}

type seedProduct struct {
	name     string
	category string
	sku      string
	barcode  string
	unit     models.ProductUnit
	price    string
	cost     string
}

var seedCategories = []string{"Flower", "Pre-Rolls", "Edibles", "Concentrates", "Accessories"}

var seedProducts = []seedProduct{
	{"Blue Dream 3.5g", "Flower", "FL-BD-35", "850001000017", models.ProductUnitEach, "35.00", "18.00"},
	{"GMO Cookies 7g", "Flower", "FL-GMO-70", "850001000024", models.ProductUnitEach, "60.00", "32.00"},
	{"House Shake", "Flower", "FL-SHAKE", "850001000031", models.ProductUnitGram, "4.00", "1.50"},
	{"Sativa Pre-Roll 1g", "Pre-Rolls", "PR-SAT-10", "850001000048", models.ProductUnitEach, "8.00", "3.25"},
	{"Indica Pre-Roll 5pk", "Pre-Rolls", "PR-IND-5P", "850001000055", models.ProductUnitEach, "30.00", "14.00"},
	{"Sour Gummies 100mg", "Edibles", "ED-GUM-100", "850001000062", models.ProductUnitEach, "18.00", "7.50"},
	{"Dark Chocolate Bar 50mg", "Edibles", "ED-CHOC-50", "850001000079", models.ProductUnitEach, "14.00", "6.00"},
	{"Live Resin 1g", "Concentrates", "CN-LR-10", "850001000086", models.ProductUnitEach, "45.00", "22.00"},
	{"Distillate Cart 0.5g", "Concentrates", "CN-CART-05", "850001000093", models.ProductUnitEach, "38.00", "16.00"},
	{"Glass Pipe", "Accessories", "AC-PIPE", "850001000109", models.ProductUnitEach, "22.00", "9.00"},
	{"Grinder", "Accessories", "AC-GRIND", "850001000116", models.ProductUnitEach, "15.00", "5.50"},
}

func main() {
	// Env-first, flags override env for convenience.
	defaultVendorName := getenv("SEED_VENDOR_NAME", "Green Stem Dispensary")
	defaultOwnerEmail := getenv("SEED_OWNER_EMAIL", "owner@greenstem.local")
	defaultOwnerPassword := strings.TrimSpace(os.Getenv("SEED_OWNER_PASSWORD"))
	defaultVendorCount := getenvInt("SEED_VENDOR_COUNT", 1)

	vendorName := flag.String("vendor-name", defaultVendorName, "Vendor name to create/reuse")
	ownerEmail := flag.String("owner-email", defaultOwnerEmail, "Owner login to create/reuse")
	ownerPassword := flag.String("owner-password", defaultOwnerPassword, "Owner password to set (required)")
	vendorCount := flag.Int("vendors", defaultVendorCount, "How many vendors to seed (creates -01..-NN variants when > 1)")
	withOperator := flag.Bool("with-operator", true, "Also create a POS operator login per vendor")
	flag.Parse()

	if strings.TrimSpace(*ownerPassword) == "" {
		fmt.Fprintln(os.Stderr, "missing required owner password: set SEED_OWNER_PASSWORD or pass --owner-password")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	// Audit hooks require an acting user in context.
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	baseName := strings.TrimSpace(*vendorName)
	baseEmail := strings.TrimSpace(*ownerEmail)
	slug := slugify(baseName)

	n := *vendorCount
	if n < 1 {
		n = 1
	}

	for i := 1; i <= n; i++ {
		name := baseName
		email := baseEmail
		if n > 1 {
			name = fmt.Sprintf("%s %02d", baseName, i)
			email = fmt.Sprintf("%s-owner%02d@local", slug, i)
		}
		if err := seedVendor(ctx, db, name, email, *ownerPassword, *withOperator); err != nil {
			fmt.Fprintf(os.Stderr, "seed %q: %v\n", name, err)
			os.Exit(1)
		}
	}
}

func seedVendor(ctx context.Context, db *gorm.DB, name, email, password string, withOperator bool) error {
	var vendor models.Vendor
	err := db.WithContext(ctx).
		Where("email = ?", email).Or("name = ?", name).
		First(&vendor).Error
	if err == gorm.ErrRecordNotFound {
		created, createErr := models.CreateVendor(ctx, &models.NewVendor{
			Name:          name,
			ContactName:   "Dev Owner",
			Email:         email,
			LicenseNumber: fmt.Sprintf("C10-%07d-LIC", 1000000+len(name)),
			City:          "Denver",
			State:         "CO",
			Timezone:      "America/Denver",
		})
		if createErr != nil {
			return fmt.Errorf("create vendor: %w", createErr)
		}
		vendor = *created
	} else if err != nil {
		return fmt.Errorf("lookup vendor: %w", err)
	}

	vendorId := vendor.ID.String()
	ctx = utils.SetVendorIdInContext(ctx, vendorId)

	// CreateVendor gives the owner a placeholder password; pin it to ours.
	if err := setPassword(ctx, db, vendorId, email, password); err != nil {
		return err
	}

	if err := ensureLocation(ctx, db, vendorId, "Back of House"); err != nil {
		return err
	}

	categoryIds := make(map[string]int, len(seedCategories))
	for _, categoryName := range seedCategories {
		id, err := ensureCategory(ctx, db, vendorId, categoryName)
		if err != nil {
			return err
		}
		categoryIds[categoryName] = id
	}

	supplierId, err := ensureSupplier(ctx, db, vendorId, "High Desert Farms")
	if err != nil {
		return err
	}

	for _, p := range seedProducts {
		if err := ensureProduct(ctx, db, vendorId, supplierId, categoryIds[p.category], p); err != nil {
			return err
		}
	}

	if withOperator {
		operatorUsername := slugify(name) + "-pos"
		if err := ensureOperator(ctx, db, vendorId, operatorUsername, password); err != nil {
			return err
		}
		fmt.Printf("seeded vendor=%s id=%s owner=%s operator=%s\n", name, vendorId, email, operatorUsername)
		return nil
	}
	fmt.Printf("seeded vendor=%s id=%s owner=%s\n", name, vendorId, email)
	return nil
}

func setPassword(ctx context.Context, db *gorm.DB, vendorId, username, password string) error {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	var user models.User
	if err := db.WithContext(ctx).
		Where("vendor_id = ? AND username = ?", vendorId, username).
		First(&user).Error; err != nil {
		return fmt.Errorf("lookup owner: %w", err)
	}
	if err := db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"Password": string(hashed),
		"IsActive": true,
	}).Error; err != nil {
		return fmt.Errorf("set owner password: %w", err)
	}
	return user.RemoveInstanceRedis()
}

func ensureLocation(ctx context.Context, db *gorm.DB, vendorId, name string) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Location{}).
		Where("vendor_id = ? AND name = ?", vendorId, name).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := models.CreateLocation(ctx, &models.NewLocation{Name: name})
	return err
}

func ensureCategory(ctx context.Context, db *gorm.DB, vendorId, name string) (int, error) {
	var category models.ProductCategory
	err := db.WithContext(ctx).
		Where("vendor_id = ? AND name = ?", vendorId, name).
		First(&category).Error
	if err == nil {
		return category.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, err
	}
	created, err := models.CreateProductCategory(ctx, &models.NewProductCategory{Name: name})
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func ensureSupplier(ctx context.Context, db *gorm.DB, vendorId, name string) (int, error) {
	var supplier models.Supplier
	err := db.WithContext(ctx).
		Where("vendor_id = ? AND name = ?", vendorId, name).
		First(&supplier).Error
	if err == nil {
		return supplier.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, err
	}
	created, err := models.CreateSupplier(ctx, &models.NewSupplier{
		Name:        name,
		ContactName: "Sales Desk",
		Email:       slugify(name) + "@suppliers.local",
	})
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func ensureProduct(ctx context.Context, db *gorm.DB, vendorId string, supplierId, categoryId int, p seedProduct) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Product{}).
		Where("vendor_id = ? AND sku = ?", vendorId, p.sku).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	price, err := decimal.NewFromString(p.price)
	if err != nil {
		return err
	}
	cost, err := decimal.NewFromString(p.cost)
	if err != nil {
		return err
	}
	_, err = models.CreateProduct(ctx, &models.NewProduct{
		Name:           p.name,
		CategoryId:     categoryId,
		SupplierId:     supplierId,
		Sku:            p.sku,
		Barcode:        p.barcode,
		Unit:           p.unit,
		Price:          price,
		Cost:           cost,
		TrackInventory: utils.NewTrue(),
	})
	return err
}

func ensureOperator(ctx context.Context, db *gorm.DB, vendorId, username, password string) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).
		Where("vendor_id = ? AND username = ?", vendorId, username).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := models.CreateUser(ctx, &models.NewUser{
		VendorId: vendorId,
		Username: username,
		Name:     "POS Operator",
		Password: password,
		IsActive: utils.NewTrue(),
		Role:     models.UserRoleOperator,
	})
	return err
}
