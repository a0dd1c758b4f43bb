// seed-admin creates or updates the admin console user (username: greenstemAdmin).
// Admin users have role = 'A'; the backend returns role "Admin" for login.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME_2=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "greenstemAdmin"
	adminPassword = "Gr33n$temAdmin"
	adminName     = "Greenstem Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// Model history hooks require vendor_id + user info in context.
	// We attach a real vendor id (first vendor in DB) and mark this as admin/bypass tenant scope.
	var vendor models.Vendor
	if err := db.WithContext(ctx).Model(&models.Vendor{}).Select("id").First(&vendor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			fmt.Fprintln(os.Stderr, "no vendors found in DB. Register a vendor first (POST /auth/register), then rerun seed-admin.")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "failed to lookup vendor: %v\n", err)
		os.Exit(1)
	}

	vendorID := vendor.ID.String()
	ctx = utils.SetVendorIdInContext(ctx, vendorID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetUsernameInContext(ctx, adminUsername)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		// Create new admin user
		u := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
			VendorId: vendorID,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin)\n", adminUsername)
		return
	}

	// Update existing user: ensure password and admin role
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":  hashedStr,
		"name":      adminName,
		"is_active": utils.NewTrue(),
		"vendor_id": vendorID,
		"role":      models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin user: username=%q (role=Admin)\n", adminUsername)
}
