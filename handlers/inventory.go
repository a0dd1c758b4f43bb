package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/models"
)

// ApplyAdjustmentHandler records a single stock mutation. A replayed
// idempotency key answers 200 with the stored result; a fresh mutation
// answers 201.
func ApplyAdjustmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewStockAdjustment
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		result, err := models.ApplyAdjustment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, result)
	}
}

// ApplyBulkAdjustmentsHandler processes a batch of adjustments and always
// answers 200 with the per-item manifest; item failures live inside it.
func ApplyBulkAdjustmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewBulkAdjustment
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		result, err := models.ApplyBulkAdjustments(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func ListStockAdjustmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		filter, ok := bindAdjustmentFilter(c)
		if !ok {
			return
		}
		page, err := models.ListStockAdjustments(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func GetStockAdjustmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		adjustment, err := models.GetStockAdjustment(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, adjustment)
	}
}

func ListStockLevelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		productId, ok := intQuery(c, "product_id")
		if !ok {
			return
		}
		locationId, ok := intQuery(c, "location_id")
		if !ok {
			return
		}
		levels, err := models.ListStockLevels(c.Request.Context(), productId, locationId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stock_levels": levels})
	}
}

func GetStockOnHandHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		locationId, ok := intQuery(c, "location_id")
		if !ok {
			return
		}
		rows, err := models.GetStockOnHand(c.Request.Context(), locationId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stock_on_hand": rows})
	}
}

// GetProductStockHandler answers the aggregate on-hand quantity for one
// product across all locations.
func GetProductStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		total, err := models.GetProductStock(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": id, "total_stock": total})
	}
}

func GetDailyBalancesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		productId, ok := intQuery(c, "product_id")
		if !ok {
			return
		}
		if productId == nil {
			respondError(c, &models.ValidationError{Field: "product_id", Message: "product_id is required"})
			return
		}
		locationId, ok := intQuery(c, "location_id")
		if !ok {
			return
		}
		fromDate, ok := dateQuery(c, "from_date")
		if !ok {
			return
		}
		toDate, ok := dateQuery(c, "to_date")
		if !ok {
			return
		}
		balances, err := models.GetStockLevelDailyBalances(c.Request.Context(), *productId, locationId, fromDate, toDate)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"daily_balances": balances})
	}
}

func bindAdjustmentFilter(c *gin.Context) (*models.StockAdjustmentFilter, bool) {
	filter := &models.StockAdjustmentFilter{BatchId: stringQuery(c, "batch_id")}

	var ok bool
	if filter.ProductId, ok = intQuery(c, "product_id"); !ok {
		return nil, false
	}
	if filter.LocationId, ok = intQuery(c, "location_id"); !ok {
		return nil, false
	}
	if filter.ReferenceId, ok = intQuery(c, "reference_id"); !ok {
		return nil, false
	}
	if filter.FromDate, ok = dateQuery(c, "from_date"); !ok {
		return nil, false
	}
	if filter.ToDate, ok = dateQuery(c, "to_date"); !ok {
		return nil, false
	}
	if raw := c.Query("adjustment_type"); raw != "" {
		adjustmentType := models.AdjustmentType(raw)
		if !adjustmentType.IsValid() {
			respondError(c, &models.ValidationError{Field: "adjustment_type", Message: "unknown adjustment type"})
			return nil, false
		}
		filter.AdjustmentType = &adjustmentType
	}
	if raw := c.Query("reference_type"); raw != "" {
		referenceType := models.EventReferenceType(raw)
		filter.ReferenceType = &referenceType
	}
	if limit, ok := intQuery(c, "limit"); !ok {
		return nil, false
	} else if limit != nil {
		filter.Limit = *limit
	}
	if offset, ok := intQuery(c, "offset"); !ok {
		return nil, false
	} else if offset != nil {
		filter.Offset = *offset
	}
	return filter, true
}
