package http

import (
	"net/http"
	"testing"

	"github.com/vovakirdan/arview-server/internal/auth"
)

func TestPatient_CRUD(t *testing.T) {
	env := newTestEnv(t)
	_, rootToken := env.user("root@example.com", auth.RoleSuperAdmin)
	_, adminToken := env.user("admin@example.com", auth.RoleAdmin)

	req := CreatePatientRequest{Number: "P-100", FirstName: "Jan", LastName: "Jansen"}
	if status := env.do(http.MethodPost, "/patient", adminToken, req, nil); status != http.StatusForbidden {
		t.Fatalf("admin create: expected 403, got %d", status)
	}

	var created CreatePatientResponse
	if status := env.do(http.MethodPost, "/patient", rootToken, req, &created); status != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", status)
	}
	if created.ID == "" || created.Message != "Patient created successfully" {
		t.Fatalf("unexpected create response %+v", created)
	}

	var body ErrorResponse
	if status := env.do(http.MethodPost, "/patient", rootToken, req, &body); status != http.StatusBadRequest {
		t.Fatalf("duplicate number: expected 400, got %d", status)
	}
	if body.Message != "patient already exists" {
		t.Fatalf("unexpected message %q", body.Message)
	}

	var got PatientResponse
	if status := env.do(http.MethodGet, "/patient/"+created.ID, adminToken, nil, &got); status != http.StatusOK {
		t.Fatalf("admin get: expected 200, got %d", status)
	}
	if got.Number != "P-100" || got.FirstName != "Jan" {
		t.Fatalf("unexpected patient %+v", got)
	}

	var updated UpdatePatientResponse
	if status := env.do(http.MethodPut, "/patient/"+created.ID, rootToken, UpdatePatientRequest{FirstName: "Johan"}, &updated); status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", status)
	}
	if updated.Patient.FirstName != "Johan" || updated.Patient.Number != "P-100" || updated.Patient.LastName != "Jansen" {
		t.Fatalf("unexpected patient after update %+v", updated.Patient)
	}

	if status := env.do(http.MethodDelete, "/patient/"+created.ID, adminToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("admin delete: expected 403, got %d", status)
	}
	if status := env.do(http.MethodDelete, "/patient/"+created.ID, rootToken, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	if status := env.do(http.MethodGet, "/patient/"+created.ID, rootToken, nil, &body); status != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", status)
	}
	if status := env.do(http.MethodPut, "/patient/"+created.ID, rootToken, UpdatePatientRequest{FirstName: "X"}, nil); status != http.StatusNotFound {
		t.Fatalf("update deleted: expected 404, got %d", status)
	}
}

func TestPatient_ListAndNumberConflict(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.user("user@example.com", auth.RoleUser)

	var ids []string
	for _, n := range []string{"P-3", "P-1", "P-2"} {
		var created CreatePatientResponse
		if status := env.do(http.MethodPost, "/patient", testSystemToken, CreatePatientRequest{Number: n, FirstName: "F", LastName: "L"}, &created); status != http.StatusOK {
			t.Fatalf("create %s: expected 200, got %d", n, status)
		}
		ids = append(ids, created.ID)
	}

	if status := env.do(http.MethodGet, "/patient", userToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("user list: expected 403, got %d", status)
	}

	var list []PatientResponse
	if status := env.do(http.MethodGet, "/patient", testSystemToken, nil, &list); status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	if len(list) != 3 || list[0].Number != "P-1" {
		t.Fatalf("unexpected list %+v", list)
	}
	if status := env.do(http.MethodGet, "/patient?limit=2", testSystemToken, nil, &list); status != http.StatusOK || len(list) != 2 {
		t.Fatalf("limited list: status %d, %d patients", status, len(list))
	}
	if status := env.do(http.MethodGet, "/patient?limit=abc", testSystemToken, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", status)
	}

	var body ErrorResponse
	if status := env.do(http.MethodPut, "/patient/"+ids[0], testSystemToken, UpdatePatientRequest{Number: "P-1"}, &body); status != http.StatusBadRequest {
		t.Fatalf("taken number: expected 400, got %d", status)
	}
	if body.Message != "Patient number already in use" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestRoom_PatientMustExist(t *testing.T) {
	env := newTestEnv(t)

	ghost := "ghost"
	var body ErrorResponse
	if status := env.do(http.MethodPost, "/room", testSystemToken, CreateRoomRequest{Name: "consult", Patient: &ghost}, &body); status != http.StatusBadRequest {
		t.Fatalf("unknown patient: expected 400, got %d", status)
	}
	if body.Message != "unknown patient: ghost" {
		t.Fatalf("unexpected message %q", body.Message)
	}

	var patient CreatePatientResponse
	if status := env.do(http.MethodPost, "/patient", testSystemToken, CreatePatientRequest{Number: "P-9", FirstName: "F", LastName: "L"}, &patient); status != http.StatusOK {
		t.Fatalf("create patient: expected 200, got %d", status)
	}

	var created CreateRoomResponse
	if status := env.do(http.MethodPost, "/room", testSystemToken, CreateRoomRequest{Name: "consult", Patient: &patient.ID}, &created); status != http.StatusOK {
		t.Fatalf("create room: expected 200, got %d", status)
	}

	if status := env.do(http.MethodPut, "/room/"+created.ID, testSystemToken, UpdateRoomRequest{Patient: &ghost}, nil); status != http.StatusBadRequest {
		t.Fatalf("update to unknown patient: expected 400, got %d", status)
	}

	if status := env.do(http.MethodDelete, "/patient/"+patient.ID, testSystemToken, nil, nil); status != http.StatusOK {
		t.Fatalf("delete patient: expected 200, got %d", status)
	}
	var room RoomResponse
	if status := env.do(http.MethodGet, "/room/"+created.ID, testSystemToken, nil, &room); status != http.StatusOK {
		t.Fatalf("get room: expected 200, got %d", status)
	}
	if room.Patient != nil {
		t.Fatalf("room still points at deleted patient %q", *room.Patient)
	}
}
