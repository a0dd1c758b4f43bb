// stock-rebuild recomputes stock_levels rows and product aggregates from the
// adjustment ledger. Scope to one (product, location) with flags, or omit
// them to rebuild every key the ledger knows for the vendor.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	vendorID := flag.String("vendor-id", "", "Required: vendor id (uuid)")
	productID := flag.Int("product-id", 0, "Optional: product id")
	locationID := flag.Int("location-id", 0, "Optional: location id")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing keys and continue rebuilding others")
	flag.Parse()

	if strings.TrimSpace(*vendorID) == "" {
		fmt.Fprintln(os.Stderr, "--vendor-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	type scope struct {
		ProductId  int
		LocationId int
	}
	var scopes []scope

	if *productID > 0 && *locationID > 0 {
		scopes = append(scopes, scope{*productID, *locationID})
	} else {
		// Discover all keys the ledger knows for the vendor.
		if err := db.Raw(`
			SELECT product_id, location_id
			FROM stock_adjustments
			WHERE vendor_id = ?
			GROUP BY product_id, location_id
		`, *vendorID).Scan(&scopes).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover scopes: %v\n", err)
			os.Exit(1)
		}
	}

	for _, s := range scopes {
		fmt.Printf("Rebuilding vendor=%s product=%d location=%d\n", *vendorID, s.ProductId, s.LocationId)
		if err := db.Transaction(func(tx *gorm.DB) error {
			_, err := workflow.RebuildStockLevelFromLedger(tx, logger, *vendorID, s.ProductId, s.LocationId)
			return err
		}); err != nil {
			if *continueOnError {
				fmt.Fprintf(os.Stderr, "rebuild failed (skipping): %v\n", err)
				continue
			}
			fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("stock rebuild complete")
}
