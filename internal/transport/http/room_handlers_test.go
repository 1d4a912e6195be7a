package http

import (
	"net/http"
	"testing"

	"github.com/vovakirdan/arview-server/internal/auth"
)

func TestCreateRoom(t *testing.T) {
	env := newTestEnv(t)
	_, superToken := env.user("super@example.com", auth.RoleSuperAdmin)
	_, adminToken := env.user("admin@example.com", auth.RoleAdmin)
	memberID, _ := env.user("member@example.com", auth.RoleUser)

	var created CreateRoomResponse
	status := env.do(http.MethodPost, "/room", superToken, CreateRoomRequest{
		Name:    "Knee replacement",
		UserIDs: []string{memberID, memberID},
	}, &created)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if created.Message != "Room created successfully" || created.ID == "" {
		t.Fatalf("unexpected response: %+v", created)
	}

	var room RoomResponse
	if status := env.do(http.MethodGet, "/room/"+created.ID, superToken, nil, &room); status != http.StatusOK {
		t.Fatalf("get room: expected 200, got %d", status)
	}
	if room.Type != "patient" {
		t.Fatalf("expected default type patient, got %q", room.Type)
	}
	if len(room.Users) != 1 || room.Users[0] != memberID {
		t.Fatalf("expected deduped member list, got %v", room.Users)
	}

	// Admin is below super-admin.
	if status := env.do(http.MethodPost, "/room", adminToken, CreateRoomRequest{Name: "x"}, nil); status != http.StatusForbidden {
		t.Fatalf("admin create: expected 403, got %d", status)
	}

	// Missing name.
	if status := env.do(http.MethodPost, "/room", superToken, map[string]any{"type": "demo"}, nil); status != http.StatusBadRequest {
		t.Fatalf("missing name: expected 400, got %d", status)
	}

	// Unknown member.
	if status := env.do(http.MethodPost, "/room", superToken, CreateRoomRequest{Name: "x", UserIDs: []string{"ghost"}}, nil); status != http.StatusBadRequest {
		t.Fatalf("unknown member: expected 400, got %d", status)
	}

	// Unknown type.
	if status := env.do(http.MethodPost, "/room", superToken, map[string]any{"name": "x", "type": "lobby"}, nil); status != http.StatusBadRequest {
		t.Fatalf("bad type: expected 400, got %d", status)
	}

	// No credentials.
	if status := env.do(http.MethodPost, "/room", "", CreateRoomRequest{Name: "x"}, nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", status)
	}
}

func TestListRooms_Visibility(t *testing.T) {
	env := newTestEnv(t)
	_, superToken := env.user("super@example.com", auth.RoleSuperAdmin)
	adminID, adminToken := env.user("admin@example.com", auth.RoleAdmin)
	_, userToken := env.user("user@example.com", auth.RoleUser)

	mine := env.room("with admin", adminID)
	env.room("without admin")

	var all []RoomResponse
	if status := env.do(http.MethodGet, "/room", superToken, nil, &all); status != http.StatusOK {
		t.Fatalf("super list: expected 200, got %d", status)
	}
	if len(all) != 2 {
		t.Fatalf("super-admin should see every room, got %d", len(all))
	}

	var visible []RoomResponse
	if status := env.do(http.MethodGet, "/room", adminToken, nil, &visible); status != http.StatusOK {
		t.Fatalf("admin list: expected 200, got %d", status)
	}
	if len(visible) != 1 || visible[0].ID != mine {
		t.Fatalf("admin should only see member rooms, got %+v", visible)
	}

	if status := env.do(http.MethodGet, "/room", userToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("user list: expected 403, got %d", status)
	}
}

func TestGetRoom_Access(t *testing.T) {
	env := newTestEnv(t)
	adminID, adminToken := env.user("admin@example.com", auth.RoleAdmin)
	_, otherToken := env.user("other@example.com", auth.RoleAdmin)

	roomID := env.room("theatre 3", adminID)

	if status := env.do(http.MethodGet, "/room/"+roomID, adminToken, nil, nil); status != http.StatusOK {
		t.Fatalf("member: expected 200, got %d", status)
	}
	if status := env.do(http.MethodGet, "/room/"+roomID, otherToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("non member: expected 403, got %d", status)
	}
	if status := env.do(http.MethodGet, "/room/missing", adminToken, nil, nil); status != http.StatusNotFound {
		t.Fatalf("unknown room: expected 404, got %d", status)
	}
}

func TestUpdateRoom(t *testing.T) {
	env := newTestEnv(t)
	_, superToken := env.user("super@example.com", auth.RoleSuperAdmin)
	firstID, _ := env.user("first@example.com", auth.RoleUser)
	secondID, _ := env.user("second@example.com", auth.RoleUser)

	roomID := env.room("before", firstID)

	name := "after"
	members := []string{secondID}
	var updated UpdateRoomResponse
	status := env.do(http.MethodPut, "/room/"+roomID, superToken, UpdateRoomRequest{Name: &name, UserIDs: &members}, &updated)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if updated.Message != "Room updated successfully" || updated.Room.Name != "after" {
		t.Fatalf("unexpected response: %+v", updated)
	}
	if len(updated.Room.Users) != 1 || updated.Room.Users[0] != secondID {
		t.Fatalf("members should be replaced, got %v", updated.Room.Users)
	}

	// Omitted fields are kept.
	if status := env.do(http.MethodPut, "/room/"+roomID, superToken, map[string]any{}, &updated); status != http.StatusOK {
		t.Fatalf("empty update: expected 200, got %d", status)
	}
	if updated.Room.Name != "after" || len(updated.Room.Users) != 1 {
		t.Fatalf("empty update changed the room: %+v", updated.Room)
	}

	if status := env.do(http.MethodPut, "/room/missing", superToken, UpdateRoomRequest{Name: &name}, nil); status != http.StatusNotFound {
		t.Fatalf("unknown room: expected 404, got %d", status)
	}
}

func TestDeleteRoom(t *testing.T) {
	env := newTestEnv(t)
	_, superToken := env.user("super@example.com", auth.RoleSuperAdmin)

	roomID := env.room("temporary")

	if status := env.do(http.MethodDelete, "/room/"+roomID, superToken, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	if status := env.do(http.MethodGet, "/room/"+roomID, superToken, nil, nil); status != http.StatusNotFound {
		t.Fatalf("deleted room: expected 404, got %d", status)
	}
	if status := env.do(http.MethodDelete, "/room/"+roomID, superToken, nil, nil); status != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", status)
	}
}
