package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// SearchLimit is the default page size for cursor-paginated list queries.
const SearchLimit = 10

var db *gorm.DB

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Env comes from .env locally and the runtime environment in deployment.
	// Nothing here may block: Cloud Run needs the container listening on
	// $PORT quickly, so connecting happens from main() after the listener
	// is up.
	godotenv.Load()
}

// ConnectDatabaseWithRetry opens the MySQL pool and sets the package global,
// retrying forever with capped exponential backoff. Call from main() after
// the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	dsn := buildDSN()

	for attempt := 1; ; attempt++ {
		opened, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger:         gormLogger(),
			NamingStrategy: &schema.NamingStrategy{},
		})
		if err == nil {
			tunePool(opened)
			if pluginErr := opened.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			if pluginErr := opened.Use(NewTenantGuardPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install tenant guard plugin: %v", pluginErr)
			}
			db = opened
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := backoff(attempt)
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// buildDSN assembles the MySQL DSN. A DB_HOST of the form
// /cloudsql/<project>:<region>:<instance> switches to the unix socket the
// Cloud SQL Auth Proxy mounts; anything else is host:port over TCP.
func buildDSN() string {
	host := os.Getenv("DB_HOST")
	network, address := "tcp", fmt.Sprintf("%s:%s", host, os.Getenv("DB_PORT"))
	if strings.HasPrefix(host, "/cloudsql/") {
		network, address = "unix", host
	}
	return fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), network, address, os.Getenv("DB_NAME"))
}

func tunePool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil || sqlDB == nil {
		return
	}
	if n := intFromEnv("DB_MAX_OPEN_CONNS", 50); n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := intFromEnv("DB_MAX_IDLE_CONNS", 25); n >= 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if n := intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); n > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(n) * time.Second)
	}
	if n := intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60); n > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(n) * time.Second)
	}
}

func gormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}

func backoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
