package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/models"
)

type toggleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// Locations

func CreateLocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewLocation
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		location, err := models.CreateLocation(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, location)
	}
}

func UpdateLocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewLocation
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		location, err := models.UpdateLocation(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, location)
	}
}

func DeleteLocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		location, err := models.DeleteLocation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, location)
	}
}

func GetLocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		location, err := models.GetLocation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, location)
	}
}

func ListLocationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		locations, err := models.ListLocation(c.Request.Context(), stringQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"locations": locations})
	}
}

func ToggleActiveLocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		location, err := models.ToggleActiveLocation(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, location)
	}
}

// Product categories

func CreateProductCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewProductCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		category, err := models.CreateProductCategory(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func UpdateProductCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewProductCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		category, err := models.UpdateProductCategory(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func DeleteProductCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		category, err := models.DeleteProductCategory(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func GetProductCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		category, err := models.GetProductCategory(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func ListProductCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		categories, err := models.GetProductCategories(c.Request.Context(), stringQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

func ToggleActiveProductCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		category, err := models.ToggleActiveProductCategory(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

// Suppliers

func CreateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		supplier, err := models.CreateSupplier(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, supplier)
	}
}

func UpdateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func DeleteSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		supplier, err := models.DeleteSupplier(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func GetSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		supplier, err := models.GetSupplier(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func ListSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		suppliers, err := models.GetSuppliers(c.Request.Context(), stringQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
	}
}

func PaginateSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		limit, ok := intQuery(c, "limit")
		if !ok {
			return
		}
		var isActive *bool
		if raw := c.Query("is_active"); raw != "" {
			b := raw == "true"
			isActive = &b
		}
		connection, err := models.PaginateSupplier(c.Request.Context(), limit, stringQuery(c, "after"),
			stringQuery(c, "name"), stringQuery(c, "phone"), stringQuery(c, "email"), isActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

// Reasons

func CreateReasonHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewReason
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		reason, err := models.CreateReason(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, reason)
	}
}

func UpdateReasonHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewReason
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		reason, err := models.UpdateReason(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reason)
	}
}

func DeleteReasonHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		reason, err := models.DeleteReason(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reason)
	}
}

func ListReasonsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		reasons, err := models.ListReason(c.Request.Context(), stringQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reasons": reasons})
	}
}

func ToggleActiveSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		supplier, err := models.ToggleActiveSupplier(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func ToggleActiveReasonHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		reason, err := models.ToggleActiveReason(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reason)
	}
}
