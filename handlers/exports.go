package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/models"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func writeXlsx(c *gin.Context, f *excelize.File, filename string) {
	c.Writer.Header().Set("Content-Type", xlsxContentType)
	c.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := f.Write(c.Writer); err != nil {
		respondError(c, err)
	}
}

// ExportStockAdjustmentsHandler streams the filtered audit trail as an xlsx
// workbook. It accepts the same query filters as the adjustment list.
func ExportStockAdjustmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		filter, ok := bindAdjustmentFilter(c)
		if !ok {
			return
		}
		f, filename, err := models.ExportStockAdjustmentsXlsx(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		writeXlsx(c, f, filename)
	}
}

func ExportStockOnHandHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		locationId, ok := intQuery(c, "location_id")
		if !ok {
			return
		}
		f, filename, err := models.ExportStockOnHandXlsx(c.Request.Context(), locationId)
		if err != nil {
			respondError(c, err)
			return
		}
		writeXlsx(c, f, filename)
	}
}

// ListTrackTraceReportsHandler lists state-reporting submissions newest-first.
func ListTrackTraceReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vendorId, ok := requireVendor(c)
		if !ok {
			return
		}
		limit, ok := intQuery(c, "limit")
		if !ok {
			return
		}
		max := 100
		if limit != nil {
			max = *limit
		}
		reports, err := models.ListTrackTraceReports(c.Request.Context(), vendorId, stringQuery(c, "status"), max)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports})
	}
}

func PaginateHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		limit, ok := intQuery(c, "limit")
		if !ok {
			return
		}
		referenceId, ok := intQuery(c, "reference_id")
		if !ok {
			return
		}
		userId, ok := intQuery(c, "user_id")
		if !ok {
			return
		}
		connection, err := models.PaginateHistory(c.Request.Context(), limit, stringQuery(c, "after"),
			stringQuery(c, "reference_type"), referenceId, userId, stringQuery(c, "action_type"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

func ListHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		referenceId, ok := intQuery(c, "reference_id")
		if !ok {
			return
		}
		userId, ok := intQuery(c, "user_id")
		if !ok {
			return
		}
		histories, err := models.GetHistories(c.Request.Context(), referenceId, stringQuery(c, "reference_type"), userId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"histories": histories})
	}
}
