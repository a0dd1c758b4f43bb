package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/handlers"
	"github.com/greenstem/pos_backend/middlewares"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"github.com/greenstem/pos_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("greenstem-pos")

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func inventoryPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		// Redis lock is a best-effort optimization.
		// Reliability must not depend on Redis: posting is also serialized via MySQL advisory locks in ProcessMessage().
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "inventoryPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "inventoryPubSubHandler", "Unmarshal body", body, err)
			// Malformed request: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		var m config.PubSubMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "inventoryPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			// Malformed Pub/Sub payload: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if m.VendorId == "" || m.ReferenceType == "" {
			config.LogError(logger, "server.go", "inventoryPubSubHandler", "Invalid pubsub message (missing required fields)", m, fmt.Errorf("vendor_id/reference_type required"))
			c.Status(http.StatusNoContent)
			return
		}

		// Correlation ID propagation: prefer payload correlation_id; fall back to Pub/Sub message ID.
		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}

		// Best-effort: try to obtain a lock for the vendor to avoid long in-request blocking.
		// If Redis is unavailable / lock cannot be obtained, continue anyway; ProcessMessage() will serialize safely.
		var lock *redislock.Lock
		if redisLock == nil {
			logger.WithFields(logrus.Fields{
				"field":          "inventoryPubSubHandler",
				"vendor_id":      m.VendorId,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.Message.ID,
			}).Warn("redis lock not ready; proceeding without redis lock")
		} else {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("lock:%s", m.VendorId), 30*time.Second, nil)
			if err == redislock.ErrNotObtained {
				logger.WithFields(logrus.Fields{
					"field":          "inventoryPubSubHandler",
					"vendor_id":      m.VendorId,
					"reference_type": m.ReferenceType,
					"reference_id":   m.ReferenceId,
					"message_id":     msg.Message.ID,
				}).Warn("could not obtain redis lock; proceeding without redis lock")
				lock = nil
			} else if err != nil {
				logger.WithFields(logrus.Fields{
					"field":          "inventoryPubSubHandler",
					"vendor_id":      m.VendorId,
					"reference_type": m.ReferenceType,
					"reference_id":   m.ReferenceId,
					"message_id":     msg.Message.ID,
				}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":        "inventoryPubSubHandler",
					"vendor_id":    m.VendorId,
					"reference_id": m.ReferenceId,
					"message_id":   msg.Message.ID,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		// Process the message as the system identity.
		ctx := utils.SetVendorIdInContext(c.Request.Context(), m.VendorId)
		ctx = utils.SetUserIdInContext(ctx, 0)
		ctx = utils.SetUserNameInContext(ctx, "System")
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)
		ctx, span := tracer.Start(ctx, "pubsub.process")
		defer span.End()
		if err := workflow.ProcessMessage(ctx, logger, m); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "inventoryPubSubHandler",
				"vendor_id":      m.VendorId,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("pubsub processing failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}

		// Success: ack.
		c.Status(http.StatusNoContent)
	}
}

// authorizeAdminOnly gates the internal ops endpoints on an admin session.
func authorizeAdminOnly(ctx context.Context) error {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return errors.New("unauthorized")
	}

	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return err
	}
	if !exists {
		db := config.GetDB()
		if db == nil {
			return errors.New("db is nil")
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return errors.New("unauthorized")
		}
	}
	if user.Role != models.UserRoleAdmin {
		return errors.New("unauthorized")
	}
	return nil
}

type outboxReplayRequest struct {
	VendorId string `json:"vendor_id"`
	RecordId int    `json:"record_id"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Require auth token (SessionMiddleware puts username in context).
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.VendorId == "" || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id and record_id are required"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		now := time.Now().UTC()
		if err := db.WithContext(c.Request.Context()).
			Model(&models.PubSubMessageRecord{}).
			Where("id = ? AND vendor_id = ?", req.RecordId, req.VendorId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			}).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"vendor_id":       req.VendorId,
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}

type outboxReprocessRequest struct {
	VendorId      string `json:"vendor_id"`
	ReferenceType string `json:"reference_type"`
	ReferenceId   int    `json:"reference_id"`
}

// outboxReprocessHandler resets every unprocessed outbox row for one document
// so the dispatcher picks it up again. Safe to call repeatedly: processing is
// idempotent end to end.
func outboxReprocessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReprocessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.VendorId == "" || req.ReferenceType == "" || req.ReferenceId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id, reference_type and reference_id are required"})
			return
		}

		ctx := utils.SetVendorIdInContext(c.Request.Context(), req.VendorId)
		status, err := models.ReprocessOutbox(ctx, models.EventReferenceType(req.ReferenceType), req.ReferenceId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func outboxStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		vendorId := strings.TrimSpace(c.Query("vendor_id"))
		referenceType := strings.TrimSpace(c.Query("reference_type"))
		referenceId, _ := strconv.Atoi(c.Query("reference_id"))
		if vendorId == "" || referenceType == "" || referenceId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id, reference_type and reference_id are required"})
			return
		}

		ctx := utils.SetVendorIdInContext(c.Request.Context(), vendorId)
		status, err := models.GetOutboxStatus(ctx, models.EventReferenceType(referenceType), referenceId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// rateLimitMiddleware builds a per-IP limiter backed by Redis so the limit
// holds across instances.
// Env:
// - RATE_LIMIT_ENABLED=true
// - RATE_LIMIT_WINDOW_SECONDS=60
// - RATE_LIMIT_MAX_REQUESTS=600
func rateLimitMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	maxRequests := int64(600)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxRequests = n
		}
	}
	windowSec := int64(60)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			windowSec = n
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr: os.Getenv("REDIS_ADDRESS"),
	})
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   "ratelimit",
		MaxRetry: 3,
	})
	if err != nil {
		logger.WithFields(logrus.Fields{
			"field": "ratelimit",
		}).Warn("rate limit store unavailable; running without rate limiting: " + err.Error())
		return func(c *gin.Context) { c.Next() }
	}

	rate := limiter.Rate{
		Period: time.Duration(windowSec) * time.Second,
		Limit:  maxRequests,
	}
	return mgin.NewMiddleware(limiter.New(store, rate))
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func registerRoutes(r *gin.Engine) {
	// Auth & vendor.
	r.POST("/auth/register", handlers.RegisterVendorHandler())
	r.POST("/auth/login", handlers.LoginHandler())
	r.POST("/auth/logout", handlers.LogoutHandler())
	r.POST("/auth/change-password", handlers.ChangePasswordHandler())
	r.GET("/vendor", handlers.GetVendorHandler())
	r.PUT("/vendor", handlers.UpdateVendorHandler())
	r.GET("/bootstrap", handlers.BootstrapHandler())

	// Users (admin only, enforced in handlers).
	r.POST("/users", handlers.CreateUserHandler())
	r.GET("/users", handlers.ListUsersHandler())
	r.GET("/users/:id", handlers.GetUserHandler())
	r.PUT("/users/:id", handlers.UpdateUserHandler())
	r.DELETE("/users/:id", handlers.DeleteUserHandler())

	// Catalog.
	r.POST("/locations", handlers.CreateLocationHandler())
	r.GET("/locations", handlers.ListLocationsHandler())
	r.GET("/locations/:id", handlers.GetLocationHandler())
	r.PUT("/locations/:id", handlers.UpdateLocationHandler())
	r.DELETE("/locations/:id", handlers.DeleteLocationHandler())
	r.PUT("/locations/:id/active", handlers.ToggleActiveLocationHandler())

	r.POST("/categories", handlers.CreateProductCategoryHandler())
	r.GET("/categories", handlers.ListProductCategoriesHandler())
	r.GET("/categories/:id", handlers.GetProductCategoryHandler())
	r.PUT("/categories/:id", handlers.UpdateProductCategoryHandler())
	r.DELETE("/categories/:id", handlers.DeleteProductCategoryHandler())
	r.PUT("/categories/:id/active", handlers.ToggleActiveProductCategoryHandler())

	r.POST("/suppliers", handlers.CreateSupplierHandler())
	r.GET("/suppliers", handlers.PaginateSuppliersHandler())
	r.GET("/suppliers/all", handlers.ListSuppliersHandler())
	r.GET("/suppliers/:id", handlers.GetSupplierHandler())
	r.PUT("/suppliers/:id", handlers.UpdateSupplierHandler())
	r.DELETE("/suppliers/:id", handlers.DeleteSupplierHandler())
	r.PUT("/suppliers/:id/active", handlers.ToggleActiveSupplierHandler())

	r.POST("/reasons", handlers.CreateReasonHandler())
	r.GET("/reasons", handlers.ListReasonsHandler())
	r.PUT("/reasons/:id", handlers.UpdateReasonHandler())
	r.DELETE("/reasons/:id", handlers.DeleteReasonHandler())
	r.PUT("/reasons/:id/active", handlers.ToggleActiveReasonHandler())

	// Products.
	r.POST("/products", handlers.CreateProductHandler())
	r.GET("/products", handlers.PaginateProductsHandler())
	r.GET("/products/all", handlers.ListAllProductsHandler())
	r.GET("/products/barcode/:barcode", handlers.GetProductByBarcodeHandler())
	r.POST("/products/import", handlers.ImportProductsHandler())
	r.GET("/products/:id", handlers.GetProductHandler())
	r.PUT("/products/:id", handlers.UpdateProductHandler())
	r.DELETE("/products/:id", handlers.DeleteProductHandler())
	r.PUT("/products/:id/active", handlers.ToggleActiveProductHandler())
	r.GET("/products/:id/stock", handlers.GetProductStockHandler())

	// Inventory.
	r.POST("/inventory/adjustments", handlers.ApplyAdjustmentHandler())
	r.POST("/inventory/adjustments/bulk", handlers.ApplyBulkAdjustmentsHandler())
	r.GET("/inventory/adjustments", handlers.ListStockAdjustmentsHandler())
	r.GET("/inventory/adjustments/:id", handlers.GetStockAdjustmentHandler())
	r.GET("/inventory/stock-levels", handlers.ListStockLevelsHandler())
	r.GET("/inventory/stock-on-hand", handlers.GetStockOnHandHandler())
	r.GET("/inventory/daily-balances", handlers.GetDailyBalancesHandler())

	// Purchase orders.
	r.POST("/purchase-orders", handlers.CreatePurchaseOrderHandler())
	r.GET("/purchase-orders", handlers.PaginatePurchaseOrdersHandler())
	r.GET("/purchase-orders/:id", handlers.GetPurchaseOrderHandler())
	r.PUT("/purchase-orders/:id", handlers.UpdatePurchaseOrderHandler())
	r.DELETE("/purchase-orders/:id", handlers.DeletePurchaseOrderHandler())
	r.POST("/purchase-orders/:id/confirm", handlers.ConfirmPurchaseOrderHandler())
	r.POST("/purchase-orders/:id/cancel", handlers.CancelPurchaseOrderHandler())
	r.POST("/purchase-orders/:id/receive", handlers.ReceiveItemsHandler())

	// Exports & reports.
	r.GET("/exports/stock-adjustments", handlers.ExportStockAdjustmentsHandler())
	r.GET("/exports/stock-on-hand", handlers.ExportStockOnHandHandler())
	r.GET("/track-trace/reports", handlers.ListTrackTraceReportsHandler())
	r.GET("/histories", handlers.PaginateHistoriesHandler())
	r.GET("/histories/all", handlers.ListHistoriesHandler())

	// Uploads.
	r.POST("/uploads/sign", handlers.SignUploadHandler())
	r.POST("/uploads/complete", handlers.CompleteUploadHandler())
	r.POST("/uploads/image", handlers.UploadImageHandler())
	r.POST("/uploads/remove-image", handlers.RemoveImageHandler())
	r.GET("/uploads/object", handlers.UploadObjectHandler())

	// Pub/Sub push endpoint.
	r.POST("/pubsub", inventoryPubSubHandler())

	// Ops tooling (admin only): replay/reprocess outbox rows and inspect pipeline state.
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	r.POST("/internal/ops/outbox/reprocess", outboxReprocessHandler())
	r.GET("/internal/ops/outbox/status", outboxStatusHandler())
	r.GET("/internal/ops/vendors", vendorsHandler())
	r.POST("/internal/ops/reconcile", reconcileHandler())
}

// vendorsHandler lists tenants so an operator can pick a vendor_id for the
// other ops endpoints.
func vendorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var name *string
		if raw := strings.TrimSpace(c.Query("name")); raw != "" {
			name = &raw
		}
		vendors, err := models.GetVendors(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"vendors": vendors})
	}
}

type reconcileRequest struct {
	VendorId string `json:"vendor_id"`
}

func reconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req reconcileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.VendorId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id is required"})
			return
		}

		correlationId, mismatches, err := models.RunStockReconciliation(c.Request.Context(), req.VendorId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"vendor_id":      req.VendorId,
			"correlation_id": correlationId,
			"mismatches":     mismatches,
		})
	}
}

func main() {
	port := os.Getenv("API_PORT_2")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		r.Use(rateLimitMiddleware(logger))
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Production schemas are managed out of band; dev and test opt in via AUTO_MIGRATE=true.
	if config.AutoMigrateEnabled() {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Info("AUTO_MIGRATE not set; skipping AutoMigrate on startup")
	}

	// Start background workers (publish AFTER commit; direct processing as dev fallback).
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if config.OutboxDispatcherEnabled() {
		go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	}
	if shouldRunDirectOutboxProcessor() {
		go NewOutboxDirectProcessor(db, logger).Run(workerCtx)
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
