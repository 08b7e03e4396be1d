package handler

import (
	"net/http"
	"testing"

	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/testutil"
)

func TestCreateQAPSeedsCatalogWhenNoItemsSent(t *testing.T) {
	env := setupWorkflowTest(t)

	body := map[string]interface{}{
		"customer_name": "Borealis Power",
		"project_name":  "Borealis 120MW",
		"plant":         "p1",
	}
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/qaps", body, tokenFor(entity.RoleRequestor, allPlants))
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	id := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	data := getQAP(t, env, id)
	items := data["items"].([]interface{})
	if len(items) != 3 {
		t.Fatalf("expected all 3 catalog checkpoints, got %d items", len(items))
	}
	// Nothing diverges, so no roles gate level 2.
	if required, ok := data["required_roles"].([]interface{}); ok && len(required) != 0 {
		t.Fatalf("expected empty required_roles, got %v", required)
	}
}

func TestCreateQAPValidation(t *testing.T) {
	env := setupWorkflowTest(t)
	token := tokenFor(entity.RoleRequestor, allPlants)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown plant", map[string]interface{}{
			"customer_name": "C", "project_name": "P", "plant": "p9",
		}},
		{"unknown checkpoint", map[string]interface{}{
			"customer_name": "C", "project_name": "P", "plant": "p1",
			"items": []map[string]interface{}{{"kind": "mqp", "seq": 99, "match": "yes"}},
		}},
		{"diverging item without customer spec", map[string]interface{}{
			"customer_name": "C", "project_name": "P", "plant": "p1",
			"items": []map[string]interface{}{{"kind": "mqp", "seq": 1, "match": "no"}},
		}},
		{"invalid match value", map[string]interface{}{
			"customer_name": "C", "project_name": "P", "plant": "p1",
			"items": []map[string]interface{}{{"kind": "mqp", "seq": 1, "match": "maybe"}},
		}},
	}
	for _, tc := range cases {
		w := testutil.DoRequest(env.Router, "POST", "/api/v1/qaps", tc.body, token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d %s", tc.name, w.Code, w.Body.String())
		}
	}
}

func TestGetQAPProjection(t *testing.T) {
	env := setupWorkflowTest(t)
	id := createTestQAP(t, env, "p4")
	respond(env, id, 2, entity.RoleProduction, allPlants, true)

	data := getQAP(t, env, id)

	required := data["required_roles"].([]interface{})
	if len(required) != 2 || required[0] != "production" || required[1] != "quality" {
		t.Fatalf("unexpected required_roles: %v", required)
	}

	byLevel := data["responses_by_level"].(map[string]interface{})
	level2 := byLevel["2"].(map[string]interface{})
	if len(level2) != 1 {
		t.Fatalf("expected one level-2 response, got %d", len(level2))
	}
	resp, ok := level2["production"].(map[string]interface{})
	if !ok {
		t.Fatalf("level-2 responses must be keyed by role, got %v", level2)
	}
	if resp["acknowledged"] != true {
		t.Fatalf("unexpected response projection: %v", resp)
	}
}

func TestGetQAPNotFoundAndBadID(t *testing.T) {
	env := setupWorkflowTest(t)
	token := tokenFor(entity.RoleAdmin, "")

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/qaps/not-a-uuid", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/qaps/de305d54-75b4-431b-adb2-eb6b9e546014", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestForReviewQueues(t *testing.T) {
	env := setupWorkflowTest(t)
	id := createTestQAP(t, env, "p4")

	listFor := func(role entity.Role, plants string) []interface{} {
		w := testutil.DoRequest(env.Router, "GET", "/api/v1/qaps/for-review", nil, tokenFor(role, plants))
		if w.Code != http.StatusOK {
			t.Fatalf("for-review failed for %s: %d %s", role, w.Code, w.Body.String())
		}
		data := testutil.ParseResponse(w)["data"]
		if data == nil {
			return nil
		}
		return data.([]interface{})
	}

	if got := listFor(entity.RoleProduction, allPlants); len(got) != 1 {
		t.Errorf("production queue: expected 1, got %d", len(got))
	}
	if got := listFor(entity.RoleQuality, allPlants); len(got) != 1 {
		t.Errorf("quality queue: expected 1, got %d", len(got))
	}
	// Technical is not named by any diverging item.
	if got := listFor(entity.RoleTechnical, allPlants); len(got) != 0 {
		t.Errorf("technical queue: expected 0, got %d", len(got))
	}
	// Plant scoping hides the p4 QAP from a p1-only reviewer.
	if got := listFor(entity.RoleProduction, "p1"); len(got) != 0 {
		t.Errorf("out-of-plant queue: expected 0, got %d", len(got))
	}
	// Head's queue fills only after level 2 completes.
	if got := listFor(entity.RoleHead, allPlants); len(got) != 0 {
		t.Errorf("head queue before level 2 completion: expected 0, got %d", len(got))
	}
	respond(env, id, 2, entity.RoleProduction, allPlants, true)
	respond(env, id, 2, entity.RoleQuality, allPlants, true)
	if got := listFor(entity.RoleHead, allPlants); len(got) != 1 {
		t.Errorf("head queue after level 2 completion: expected 1, got %d", len(got))
	}
}

// A diverging item may route its review to head or technical-head. Their
// queue must then show the QAP while it waits at level 2, alongside their own
// level, or the acknowledgement they owe could never be given.
func TestForReviewIncludesHeadNamedAtLevelTwo(t *testing.T) {
	env := setupWorkflowTest(t)

	body := map[string]interface{}{
		"customer_name": "Meridian Solar",
		"project_name":  "Meridian 80MW",
		"plant":         "p4",
		"items": []map[string]interface{}{
			{"kind": "mqp", "seq": 1, "match": "no",
				"customer_specification": "Peel strength >= 3.0N",
				"review_by":              []string{"head"}},
		},
	}
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/qaps", body, tokenFor(entity.RoleRequestor, allPlants))
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	id := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/qaps/for-review", nil, tokenFor(entity.RoleHead, allPlants))
	if w.Code != http.StatusOK {
		t.Fatalf("for-review failed: %d %s", w.Code, w.Body.String())
	}
	queue, _ := testutil.ParseResponse(w)["data"].([]interface{})
	if len(queue) != 1 {
		t.Fatalf("head queue must show the level-2 QAP naming head, got %d entries", len(queue))
	}
	// Production is not named by the item and sees nothing.
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/qaps/for-review", nil, tokenFor(entity.RoleProduction, allPlants))
	if got, _ := testutil.ParseResponse(w)["data"].([]interface{}); len(got) != 0 {
		t.Fatalf("production queue: expected 0, got %d", len(got))
	}

	// Head acknowledges at level 2 and the QAP moves to head's own level.
	if w := respond(env, id, 2, entity.RoleHead, allPlants, true); w.Code != http.StatusOK {
		t.Fatalf("head level-2 response failed: %d %s", w.Code, w.Body.String())
	}
	requireStatus(t, env, id, "level-3", 3)
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/qaps/for-review", nil, tokenFor(entity.RoleHead, allPlants))
	if queue, _ = testutil.ParseResponse(w)["data"].([]interface{}); len(queue) != 1 {
		t.Fatalf("head queue must still show the QAP at level 3, got %d entries", len(queue))
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	env := setupWorkflowTest(t)
	id := createTestQAP(t, env, "p4")

	w := testutil.DoRequest(env.Router, "DELETE", "/api/v1/qaps/"+id, nil, tokenFor(entity.RoleRequestor, allPlants))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for requestor delete, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "DELETE", "/api/v1/qaps/"+id, nil, tokenFor(entity.RoleAdmin, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("admin delete failed: %d %s", w.Code, w.Body.String())
	}

	// Children are gone with the aggregate.
	var items, responses, timeline int64
	env.DB.Model(&entity.SpecificationItem{}).Where("qap_id = ?", id).Count(&items)
	env.DB.Model(&entity.LevelResponse{}).Where("qap_id = ?", id).Count(&responses)
	env.DB.Model(&entity.TimelineEntry{}).Where("qap_id = ?", id).Count(&timeline)
	if items+responses+timeline != 0 {
		t.Fatalf("expected cascade delete, found %d items %d responses %d timeline rows", items, responses, timeline)
	}

	w = testutil.DoRequest(env.Router, "DELETE", "/api/v1/qaps/"+id, nil, tokenFor(entity.RoleAdmin, ""))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", w.Code)
	}
}

func TestListMineFilter(t *testing.T) {
	env := setupWorkflowTest(t)
	createTestQAP(t, env, "p4")

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/qaps?mine=true", nil, tokenFor(entity.RoleRequestor, allPlants))
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 own QAP, got %d", len(items))
	}

	// Someone else's "mine" view is empty.
	otherToken := testutil.GenerateTestToken("uid-x", "otherreq", entity.RoleRequestor, allPlants)
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/qaps?mine=true", nil, otherToken)
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	items = data["items"].([]interface{})
	if len(items) != 0 {
		t.Fatalf("expected 0 QAPs for another requestor, got %d", len(items))
	}
}
