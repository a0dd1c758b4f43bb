package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"github.com/shopspring/decimal"
)

// testEnv is one provisioned tenant inside a fresh MySQL/Redis pair.
type testEnv struct {
	VendorId   string
	LocationId int
	SupplierId int
	ProductId  int
}

// setupInventoryTestEnv starts disposable containers, migrates a fresh schema
// and provisions one vendor with a supplier and a tracked product. Each test
// gets its own containers so state never leaks between tests.
func setupInventoryTestEnv(t *testing.T) (context.Context, *testEnv) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "greenstem_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	vendor, err := models.CreateVendor(ctx, &models.NewVendor{
		Name:  "Test Dispensary",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateVendor: %v", err)
	}
	vendorId := vendor.ID.String()
	ctx = utils.SetVendorIdInContext(ctx, vendorId)

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	var mainStore models.Location
	if err := db.WithContext(ctx).
		Where("vendor_id = ? AND name = ?", vendorId, "Main Store").
		First(&mainStore).Error; err != nil {
		t.Fatalf("fetch main store: %v", err)
	}

	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{
		Name:  "Test Farms",
		Email: "sales@testfarms.local",
	})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           "Blue Dream 3.5g",
		Sku:            "FL-BD-35",
		Barcode:        "850001000017",
		Unit:           models.ProductUnitEach,
		Price:          decimal.NewFromInt(35),
		Cost:           decimal.NewFromInt(18),
		TrackInventory: utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	return ctx, &testEnv{
		VendorId:   vendorId,
		LocationId: mainStore.ID,
		SupplierId: supplier.ID,
		ProductId:  product.ID,
	}
}

// seedStock raises on-hand for the env's product via the adjustment engine.
func seedStock(t *testing.T, ctx context.Context, env *testEnv, qty int64) {
	t.Helper()
	_, err := models.ApplyAdjustment(ctx, &models.NewStockAdjustment{
		ProductId:      env.ProductId,
		LocationId:     env.LocationId,
		AdjustmentType: models.AdjustmentTypeCountCorrection,
		QuantityChange: decimal.NewFromInt(qty),
		Reason:         "Seed stock",
		IdempotencyKey: utils.NewIdempotencyKey("seed", fmt.Sprint(env.ProductId)),
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func onHand(t *testing.T, ctx context.Context, env *testEnv) decimal.Decimal {
	t.Helper()
	levels, err := models.ListStockLevels(ctx, &env.ProductId, &env.LocationId)
	if err != nil {
		t.Fatalf("ListStockLevels: %v", err)
	}
	if len(levels) == 0 {
		return decimal.Zero
	}
	return levels[0].QuantityOnHand
}

func TestAdjustmentBlocksNegativeStock(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)
	seedStock(t, ctx, env, 10)

	db := config.GetDB()
	var auditBefore int64
	if err := db.WithContext(ctx).Model(&models.StockAdjustment{}).
		Where("vendor_id = ?", env.VendorId).Count(&auditBefore).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}

	_, err := models.ApplyAdjustment(ctx, &models.NewStockAdjustment{
		ProductId:      env.ProductId,
		LocationId:     env.LocationId,
		AdjustmentType: models.AdjustmentTypeShrinkage,
		QuantityChange: decimal.NewFromInt(-15),
		Reason:         "Shrinkage count",
		IdempotencyKey: "neg-test-1",
	})
	if err == nil {
		t.Fatalf("expected adjustment below zero to be rejected")
	}
	var invalid *models.InvalidAdjustmentError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidAdjustmentError, got %T: %v", err, err)
	}
	if got := invalid.QuantityOnHand.String(); got != "10" {
		t.Fatalf("error should carry on-hand 10, got %s", got)
	}

	// Rejection must leave no trace: same stock, no audit row, no outbox event.
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("on-hand changed after rejected adjustment: %s", got)
	}
	var auditAfter int64
	if err := db.WithContext(ctx).Model(&models.StockAdjustment{}).
		Where("vendor_id = ?", env.VendorId).Count(&auditAfter).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if auditAfter != auditBefore {
		t.Fatalf("audit rows grew on rejection: before=%d after=%d", auditBefore, auditAfter)
	}
	var outboxCount int64
	if err := db.WithContext(ctx).Model(&models.PubSubMessageRecord{}).
		Where("vendor_id = ? AND reference_type = ?", env.VendorId, models.EventReferenceTypeStockAdjustment).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	if outboxCount != auditBefore {
		t.Fatalf("outbox rows out of step with audit rows: audit=%d outbox=%d", auditBefore, outboxCount)
	}
}

func TestAdjustmentIdempotentReplay(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)
	seedStock(t, ctx, env, 10)

	input := &models.NewStockAdjustment{
		ProductId:      env.ProductId,
		LocationId:     env.LocationId,
		AdjustmentType: models.AdjustmentTypeDamage,
		QuantityChange: decimal.NewFromInt(-3),
		Reason:         "Dropped jar",
		IdempotencyKey: "damage-2026-02-14-jar",
	}

	first, err := models.ApplyAdjustment(ctx, input)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.Replayed {
		t.Fatalf("first apply must not be a replay")
	}
	if !first.QuantityAfter.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected after=7, got %s", first.QuantityAfter)
	}

	second, err := models.ApplyAdjustment(ctx, input)
	if err != nil {
		t.Fatalf("retry apply: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("retry with same key must be flagged as replayed")
	}
	if second.AdjustmentId != first.AdjustmentId {
		t.Fatalf("replay returned a different audit row: first=%d second=%d", first.AdjustmentId, second.AdjustmentId)
	}
	if !second.QuantityBefore.Equal(first.QuantityBefore) || !second.QuantityAfter.Equal(first.QuantityAfter) {
		t.Fatalf("replay snapshot differs: first=%s..%s second=%s..%s",
			first.QuantityBefore, first.QuantityAfter, second.QuantityBefore, second.QuantityAfter)
	}

	// The mutation happened exactly once.
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected on-hand 7 after one applied damage, got %s", got)
	}
	db := config.GetDB()
	var rows int64
	if err := db.WithContext(ctx).Model(&models.StockAdjustment{}).
		Where("vendor_id = ? AND idempotency_key = ?", env.VendorId, input.IdempotencyKey).
		Count(&rows).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected exactly one audit row for the key, got %d", rows)
	}
}

func TestConcurrentAdjustmentsBothApply(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)
	seedStock(t, ctx, env, 10)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	apply := func(change int64, key string) {
		defer wg.Done()
		_, err := models.ApplyAdjustment(ctx, &models.NewStockAdjustment{
			ProductId:      env.ProductId,
			LocationId:     env.LocationId,
			AdjustmentType: models.AdjustmentTypeCountCorrection,
			QuantityChange: decimal.NewFromInt(change),
			Reason:         "Concurrent count",
			IdempotencyKey: key,
		})
		errCh <- err
	}

	wg.Add(2)
	go apply(5, "conc-plus-5")
	go apply(-3, "conc-minus-3")
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent apply: %v", err)
		}
	}

	// Row locks serialize the two writers; no update may be lost.
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected 10+5-3=12 on hand, got %s", got)
	}

	// The audit chain stays contiguous: each row's before equals the previous
	// row's after, in commit order.
	db := config.GetDB()
	var rows []models.StockAdjustment
	if err := db.WithContext(ctx).
		Where("vendor_id = ? AND product_id = ? AND location_id = ?", env.VendorId, env.ProductId, env.LocationId).
		Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load audit rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 audit rows (seed + 2 concurrent), got %d", len(rows))
	}
	for i, row := range rows {
		if !row.QuantityAfter.Equal(row.QuantityBefore.Add(row.QuantityChange)) {
			t.Fatalf("row %d: after != before + change (%s != %s + %s)",
				row.ID, row.QuantityAfter, row.QuantityBefore, row.QuantityChange)
		}
		if i > 0 && !row.QuantityBefore.Equal(rows[i-1].QuantityAfter) {
			t.Fatalf("audit chain broken between rows %d and %d: %s != %s",
				rows[i-1].ID, row.ID, rows[i-1].QuantityAfter, row.QuantityBefore)
		}
	}

	// Product aggregate follows the ledger.
	var product models.Product
	if err := db.WithContext(ctx).Where("vendor_id = ? AND id = ?", env.VendorId, env.ProductId).
		First(&product).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if !product.TotalStock.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("product total stock should be 12, got %s", product.TotalStock)
	}
}

func TestBulkAdjustmentPartialManifest(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)
	seedStock(t, ctx, env, 10)

	second, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           "Sour Gummies 100mg",
		Sku:            "ED-GUM-100",
		Unit:           models.ProductUnitEach,
		Price:          decimal.NewFromInt(18),
		Cost:           decimal.NewFromInt(7),
		TrackInventory: utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	result, err := models.ApplyBulkAdjustments(ctx, &models.NewBulkAdjustment{
		BatchKey: "nightly-count-2026-02-14",
		Adjustments: []*models.NewStockAdjustment{
			{
				ProductId:      env.ProductId,
				LocationId:     env.LocationId,
				AdjustmentType: models.AdjustmentTypeCountCorrection,
				QuantityChange: decimal.NewFromInt(2),
				Reason:         "Nightly count",
			},
			{
				ProductId:      second.ID,
				LocationId:     env.LocationId,
				AdjustmentType: models.AdjustmentTypeCountCorrection,
				QuantityChange: decimal.NewFromInt(40),
				Reason:         "Nightly count",
			},
			{
				ProductId:      99999, // unknown product
				LocationId:     env.LocationId,
				AdjustmentType: models.AdjustmentTypeCountCorrection,
				QuantityChange: decimal.NewFromInt(1),
				Reason:         "Nightly count",
			},
		},
	})
	if err != nil {
		t.Fatalf("ApplyBulkAdjustments: %v", err)
	}

	// One bad line never aborts the good ones.
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %d / %d", result.Succeeded, result.Failed)
	}
	if result.Results[2].ErrorKind != models.ErrorKindNotFound {
		t.Fatalf("expected NotFound on line 2, got %q (%s)", result.Results[2].ErrorKind, result.Results[2].ErrorMessage)
	}
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected line 0 applied (10+2), got %s", got)
	}

	// Audit rows carry the batch id so one physical count is queryable as a set.
	db := config.GetDB()
	var batchRows int64
	if err := db.WithContext(ctx).Model(&models.StockAdjustment{}).
		Where("vendor_id = ? AND batch_id = ?", env.VendorId, result.BatchId).
		Count(&batchRows).Error; err != nil {
		t.Fatalf("count batch rows: %v", err)
	}
	if batchRows != 2 {
		t.Fatalf("expected 2 audit rows stamped with batch id, got %d", batchRows)
	}

	// Retrying the whole batch replays line by line; nothing moves twice.
	retry, err := models.ApplyBulkAdjustments(ctx, &models.NewBulkAdjustment{
		BatchKey: "nightly-count-2026-02-14",
		Adjustments: []*models.NewStockAdjustment{
			{
				ProductId:      env.ProductId,
				LocationId:     env.LocationId,
				AdjustmentType: models.AdjustmentTypeCountCorrection,
				QuantityChange: decimal.NewFromInt(2),
				Reason:         "Nightly count",
			},
		},
	})
	if err != nil {
		t.Fatalf("retry bulk: %v", err)
	}
	if !retry.Results[0].Replayed {
		t.Fatalf("retried line must replay, not reapply")
	}
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("stock moved on batch retry: %s", got)
	}
}

// --- docker plumbing ---

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("pos-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("pos-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=greenstem_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
