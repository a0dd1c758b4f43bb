// tracktrace-resubmit refiles failed compliance reports with the state
// track-and-trace API. The Pub/Sub worker retries failed reports on its own
// until they go dead; this tool is the manual path for dead reports and for
// draining a backlog after a provider outage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/workflow"
)

func main() {
	vendorID := flag.String("vendor-id", "", "Vendor id (uuid); omit to scan every vendor")
	includeDead := flag.Bool("include-dead", false, "Also resubmit reports past the retry cutoff")
	limit := flag.Int("limit", 100, "Maximum reports to resubmit in one run")
	dryRun := flag.Bool("dry-run", false, "List matching reports without submitting")
	flag.Parse()

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	statuses := []string{models.TrackTraceStatusFailed}
	if *includeDead {
		statuses = append(statuses, models.TrackTraceStatusDead)
	}

	query := db.Where("status IN ?", statuses).Order("id")
	if strings.TrimSpace(*vendorID) != "" {
		query = query.Where("vendor_id = ?", strings.TrimSpace(*vendorID))
	}
	if *limit > 0 {
		query = query.Limit(*limit)
	}

	var reports []models.TrackTraceReport
	if err := query.Find(&reports).Error; err != nil {
		fmt.Fprintf(os.Stderr, "list reports: %v\n", err)
		os.Exit(1)
	}
	if len(reports) == 0 {
		fmt.Println("no reports to resubmit")
		return
	}

	ctx := context.Background()
	submitted, failed := 0, 0
	for i := range reports {
		report := &reports[i]
		if *dryRun {
			fmt.Printf("would resubmit report=%d vendor=%s ref=%s/%d status=%s attempts=%d\n",
				report.ID, report.VendorId, report.ReferenceType, report.ReferenceId, report.Status, report.Attempts)
			continue
		}
		if err := workflow.ResubmitTrackTraceReport(ctx, db, logger, report); err != nil {
			fmt.Fprintf(os.Stderr, "report=%d vendor=%s ref=%s/%d: %v\n",
				report.ID, report.VendorId, report.ReferenceType, report.ReferenceId, err)
			failed++
			continue
		}
		fmt.Printf("resubmitted report=%d vendor=%s ref=%s/%d\n",
			report.ID, report.VendorId, report.ReferenceType, report.ReferenceId)
		submitted++
	}

	if *dryRun {
		fmt.Printf("%d report(s) match\n", len(reports))
		return
	}
	fmt.Printf("submitted=%d failed=%d\n", submitted, failed)
	if failed > 0 {
		os.Exit(2)
	}
}
