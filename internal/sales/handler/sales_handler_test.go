package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	qapentity "github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/testutil"
	"github.com/solacepv/qapflow/internal/sales/entity"
	"github.com/solacepv/qapflow/internal/sales/repository"
	"github.com/solacepv/qapflow/internal/sales/service"
)

func setupSalesTest(t *testing.T) (*testutil.TestEnv, []entity.BOMComponent) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	components := []entity.BOMComponent{
		{ID: uuid.NewString(), Component: "cell", Vendor: "Aiko", Model: "A600-182", Specification: "182mm n-type", CreatedAt: time.Now()},
		{ID: uuid.NewString(), Component: "glass", Vendor: "Xinyi Solar", Model: "XYG-2.0AR", Specification: "2.0mm AR coated", CreatedAt: time.Now()},
	}
	for i := range components {
		if err := db.Create(&components[i]).Error; err != nil {
			t.Fatalf("Failed to seed BOM component: %v", err)
		}
	}

	repos := repository.NewRepositories(db)
	svc := service.NewSalesService(repos, nil, zap.NewNop())
	handler := NewSalesHandler(svc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/sales-requests", handler.Create)
	api.GET("/sales-requests", handler.List)
	api.GET("/sales-requests/:id", handler.Get)
	api.POST("/sales-requests/:id/submit", handler.Submit)
	api.GET("/bom/options", handler.BOMOptions)

	return &testutil.TestEnv{DB: db, Router: router, T: t}, components
}

func salesToken() string {
	return testutil.GenerateTestToken("uid-sales", "sales1", qapentity.RoleRequestor, "p1,p2")
}

func TestSalesRequestCreateAndSubmit(t *testing.T) {
	env, components := setupSalesTest(t)
	token := salesToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests", map[string]interface{}{
		"customer_name":  "Helios Energy",
		"project_name":   "Helios 450MW",
		"plant":          "p2",
		"module_wattage": "585",
		"order_quantity": 450000,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	id := data["id"].(string)
	if data["status"] != entity.SalesStatusDraft {
		t.Fatalf("expected draft, got %v", data["status"])
	}

	// Submitting without BOM selections is rejected.
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests/"+id+"/submit",
		map[string]interface{}{}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without BOM selections, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests/"+id+"/submit",
		map[string]interface{}{
			"bom_selections": map[string]string{
				"cell":  components[0].ID,
				"glass": components[1].ID,
			},
		}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.SalesStatusSubmitted {
		t.Fatalf("expected submitted, got %v", data["status"])
	}

	// The snapshot copied the master rows.
	selections := data["bom_selections"].(map[string]interface{})
	cell := selections["cell"].(map[string]interface{})
	if cell["vendor"] != "Aiko" || cell["model"] != "A600-182" {
		t.Fatalf("unexpected BOM snapshot: %v", cell)
	}

	// Re-submission is a state error.
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests/"+id+"/submit",
		map[string]interface{}{}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on re-submission, got %d", w.Code)
	}
}

func TestSalesSubmitRejectsUnknownComponent(t *testing.T) {
	env, _ := setupSalesTest(t)
	token := salesToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests", map[string]interface{}{
		"customer_name": "C", "project_name": "P", "plant": "p1",
	}, token)
	id := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests/"+id+"/submit",
		map[string]interface{}{
			"bom_selections": map[string]string{"cell": uuid.NewString()},
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown component id, got %d", w.Code)
	}
}

func TestBOMSnapshotSurvivesMasterEdit(t *testing.T) {
	env, components := setupSalesTest(t)
	token := salesToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests", map[string]interface{}{
		"customer_name": "C", "project_name": "P", "plant": "p1",
	}, token)
	id := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests/"+id+"/submit",
		map[string]interface{}{
			"bom_selections": map[string]string{"cell": components[0].ID},
		}, token)

	// Rewrite the master row after submission.
	env.DB.Model(&entity.BOMComponent{}).Where("id = ?", components[0].ID).
		Update("vendor", "SomeoneElse")

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/sales-requests/"+id, nil, token)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	cell := data["bom_selections"].(map[string]interface{})["cell"].(map[string]interface{})
	if cell["vendor"] != "Aiko" {
		t.Fatalf("snapshot must keep the vendor at submission time, got %v", cell["vendor"])
	}
}

func TestBOMOptionsGroupedByComponent(t *testing.T) {
	env, _ := setupSalesTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/bom/options", nil, salesToken())
	if w.Code != http.StatusOK {
		t.Fatalf("options failed: %d %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if len(data["cell"].([]interface{})) != 1 || len(data["glass"].([]interface{})) != 1 {
		t.Fatalf("unexpected grouping: %v", data)
	}
}

func TestSalesListMineFilter(t *testing.T) {
	env, _ := setupSalesTest(t)
	token := salesToken()

	testutil.DoRequest(env.Router, "POST", "/api/v1/sales-requests", map[string]interface{}{
		"customer_name": "C", "project_name": "P", "plant": "p1",
	}, token)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/sales-requests?mine=true", nil, token)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if len(data["items"].([]interface{})) != 1 {
		t.Fatalf("expected 1 own request, got %v", data["items"])
	}

	other := testutil.GenerateTestToken("uid-y", "other", qapentity.RoleRequestor, "p1")
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/sales-requests?mine=true", nil, other)
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if len(data["items"].([]interface{})) != 0 {
		t.Fatalf("expected 0 for another user, got %v", data["items"])
	}
}
