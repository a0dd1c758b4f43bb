// stock-reconcile reports drift between ledger-derived and stored quantities.
// It writes one reconciliation_reports row per mismatch and exits non-zero
// when any drift is found, so it can gate a deploy or page from cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
)

func main() {
	vendorID := flag.String("vendor-id", "", "Vendor id (uuid); omit to check every vendor")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()
	var vendorIds []string
	if strings.TrimSpace(*vendorID) != "" {
		vendorIds = []string{strings.TrimSpace(*vendorID)}
	} else {
		if err := db.Model(&models.Vendor{}).Pluck("id", &vendorIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "list vendors: %v\n", err)
			os.Exit(1)
		}
	}

	totalMismatches := 0
	for _, id := range vendorIds {
		cid, mismatches, err := models.RunStockReconciliation(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconcile vendor=%s: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("vendor=%s mismatches=%d correlation_id=%s\n", id, mismatches, cid)
		totalMismatches += mismatches
	}

	if totalMismatches > 0 {
		fmt.Fprintf(os.Stderr, "drift detected: %d mismatch(es); see reconciliation_reports\n", totalMismatches)
		os.Exit(2)
	}
	fmt.Println("no drift detected")
}
