package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"gorm.io/gorm"
)

// respondError maps a model error onto the JSON envelope
// {"error": {"kind": "...", "message": "..."}} with the matching HTTP status.
// Transient storage failures return 503 so clients retry with the same
// idempotency key.
func respondError(c *gin.Context, err error) {
	kind := models.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case models.ErrorKindValidation:
		status = http.StatusBadRequest
	case models.ErrorKindInvalidAdjustment, models.ErrorKindOverReceipt:
		status = http.StatusUnprocessableEntity
	case models.ErrorKindNotFound:
		status = http.StatusNotFound
	case models.ErrorKindTransientStorage:
		status = http.StatusServiceUnavailable
	}
	if kind == models.ErrorKindInternal {
		switch {
		case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
			kind = models.ErrorKindNotFound
			status = http.StatusNotFound
		case err.Error() == "vendor id is required",
			err.Error() == "user id is required",
			err.Error() == "token is required":
			kind = "Unauthorized"
			status = http.StatusUnauthorized
		}
		logger := config.GetLogger()
		if status == http.StatusInternalServerError {
			config.LogError(logger, "handlers", "respondError", c.FullPath(), nil, err)
		}
	}
	c.JSON(status, gin.H{"error": gin.H{"kind": kind, "message": err.Error()}})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
		"kind":    models.ErrorKindValidation,
		"message": err.Error(),
	}})
}

func respondUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{
		"kind":    "Unauthorized",
		"message": message,
	}})
}

// requireVendor guards authenticated routes; the session/auth middlewares
// hydrate the context, this only rejects requests that skipped them.
func requireVendor(c *gin.Context) (string, bool) {
	vendorId, ok := utils.GetVendorIdFromContext(c.Request.Context())
	if !ok || vendorId == "" {
		respondUnauthorized(c, "authentication required")
		return "", false
	}
	return vendorId, true
}

func requireAdmin(c *gin.Context) bool {
	isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context())
	if !ok || !isAdmin {
		respondUnauthorized(c, "admin access required")
		return false
	}
	return true
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondBindError(c, &models.ValidationError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondBindError(c, &models.ValidationError{Field: name, Message: "must be an integer"})
		return nil, false
	}
	return &n, true
}

func stringQuery(c *gin.Context, name string) *string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	return &raw
}

// dateQuery accepts YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS.
func dateQuery(c *gin.Context, name string) (*models.MyDateString, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		t, err = time.Parse("2006-01-02", raw)
	}
	if err != nil {
		respondBindError(c, &models.ValidationError{Field: name, Message: "must be YYYY-MM-DD"})
		return nil, false
	}
	d := models.MyDateString(t)
	return &d, true
}
