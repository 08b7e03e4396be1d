package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/solacepv/qapflow/internal/middleware"
	"github.com/solacepv/qapflow/internal/qap/entity"
	salesentity "github.com/solacepv/qapflow/internal/sales/entity"
)

const (
	TestSchema = "test_qapflow"
	JWTSecret  = "qapflow-test-jwt-secret-2026"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "qapflow")
	password := getEnv("DB_PASSWORD", "qapflow123")
	dbname := getEnv("DB_NAME", "qapflow")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Migrate test tables
	err = db.AutoMigrate(
		&entity.User{},
		&entity.QAP{},
		&entity.SpecificationItem{},
		&entity.LevelResponse{},
		&entity.TimelineEntry{},
		&entity.SpecCatalogItem{},
		&salesentity.SalesRequest{},
		&salesentity.BOMComponent{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, username string, role entity.Role, plants string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"uid":      userID,
		"username": username,
		"name":     username,
		"role":     string(role),
		"plants":   plants,
		"iss":      "qapflow",
		"iat":      now.Unix(),
		"exp":      now.Add(24 * time.Hour).Unix(),
		"jti":      fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedTestUser creates a test user in the database
func SeedTestUser(t *testing.T, db *gorm.DB, username string, role entity.Role, plants entity.PlantList) *entity.User {
	t.Helper()
	user := &entity.User{
		ID:           fmt.Sprintf("user-%s-%d", username, time.Now().UnixNano()%1000000),
		Username:     username,
		PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		Name:         username,
		Email:        username + "@test.local",
		Role:         role,
		Plants:       plants,
		Status:       "active",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedCatalog inserts a small spec catalog for tests. Review roles follow
// the default routing: MQP checkpoints to production/quality, visual to
// quality/technical.
func SeedCatalog(t *testing.T, db *gorm.DB, version string) []entity.SpecCatalogItem {
	t.Helper()
	items := []entity.SpecCatalogItem{
		{ID: fmt.Sprintf("cat-1-%d", time.Now().UnixNano()%1000000), Version: version, Kind: entity.SpecKindMQP, Seq: 1,
			CriteriaClass: "critical", Criteria: "Cell soldering", Specification: "Peel strength >= 2N",
			ReviewBy: entity.RoleList{entity.RoleProduction, entity.RoleQuality}},
		{ID: fmt.Sprintf("cat-2-%d", time.Now().UnixNano()%1000000), Version: version, Kind: entity.SpecKindMQP, Seq: 2,
			CriteriaClass: "major", Criteria: "Lamination", Specification: "Gel content 75-90%",
			ReviewBy: entity.RoleList{entity.RoleProduction, entity.RoleTechnical}},
		{ID: fmt.Sprintf("cat-3-%d", time.Now().UnixNano()%1000000), Version: version, Kind: entity.SpecKindVisualEL, Seq: 1,
			CriteriaClass: "critical", DefectName: "Microcrack", Specification: "No crossing cracks",
			ReviewBy: entity.RoleList{entity.RoleQuality, entity.RoleTechnical}},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("Failed to seed catalog item: %v", err)
		}
	}
	return items
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
