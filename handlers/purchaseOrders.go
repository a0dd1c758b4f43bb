package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/models"
)

func CreatePurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewPurchaseOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		order, err := models.CreatePurchaseOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func UpdatePurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewPurchaseOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		order, err := models.UpdatePurchaseOrder(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func DeletePurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		order, err := models.DeletePurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func GetPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		order, err := models.GetPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func PaginatePurchaseOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		limit, ok := intQuery(c, "limit")
		if !ok {
			return
		}
		supplierId, ok := intQuery(c, "supplier_id")
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
		var status *models.PurchaseOrderStatus
		if raw := c.Query("status"); raw != "" {
			s := models.PurchaseOrderStatus(raw)
			if !s.IsValid() {
				respondError(c, &models.ValidationError{Field: "status", Message: "unknown purchase order status"})
				return
			}
			status = &s
		}
		var orderType *models.OrderType
		if raw := c.Query("order_type"); raw != "" {
			t := models.OrderType(raw)
			if !t.IsValid() {
				respondError(c, &models.ValidationError{Field: "order_type", Message: "unknown order type"})
				return
			}
			orderType = &t
		}
		connection, err := models.PaginatePurchaseOrder(c.Request.Context(), limit, stringQuery(c, "after"),
			status, orderType, supplierId, fromDate, toDate)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

func ConfirmPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		order, err := models.ConfirmPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func CancelPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		order, err := models.CancelPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

type receiveItemsRequest struct {
	LocationId int                       `json:"location_id"`
	Items      []models.ReceiveItemInput `json:"items" binding:"required"`
}

// ReceiveItemsHandler records a delivery against a purchase order. Location
// defaults to the order's location when omitted; over-receipt on any line
// rejects the whole request.
func ReceiveItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req receiveItemsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		order, err := models.ReceiveItems(c.Request.Context(), id, req.LocationId, req.Items)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
