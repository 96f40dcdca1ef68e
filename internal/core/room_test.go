package core

import (
	"errors"
	"strings"
	"testing"
)

func TestBuiltinCatalog(t *testing.T) {
	d := NewRoomDirectory()
	rooms := d.List()
	want := []string{"gaming", "coding", "chilling", "general"}
	if len(rooms) != len(want) {
		t.Fatalf("len = %d, want %d", len(rooms), len(want))
	}
	for i, id := range want {
		if rooms[i].ID != id || rooms[i].Kind != RoomBuiltIn {
			t.Fatalf("room %d = %+v, want built-in %s", i, rooms[i], id)
		}
	}
	if rooms[0].ID != DefaultRoomID {
		t.Fatalf("default room %q is not first", DefaultRoomID)
	}
}

func TestValidateCreate(t *testing.T) {
	d := NewRoomDirectory()
	d.Install(Room{ID: "ABC123", DisplayName: "Night Owls"})

	tests := []struct {
		name     string
		spec     RoomSpec
		wantCode string
		wantMax  int
	}{
		{name: "defaults max users", spec: RoomSpec{Name: "  Raid Team  "}, wantMax: DefaultMaxUsers},
		{name: "explicit max users", spec: RoomSpec{Name: "Raid Team", MaxUsers: 12}, wantMax: 12},
		{name: "too short", spec: RoomSpec{Name: "ab"}, wantCode: ErrCodeBadRoomName},
		{name: "too long", spec: RoomSpec{Name: strings.Repeat("x", MaxRoomNameLength+1)}, wantCode: ErrCodeBadRoomName},
		{name: "collides with built-in", spec: RoomSpec{Name: "GAMING"}, wantCode: ErrCodeRoomExists},
		{name: "collides with private", spec: RoomSpec{Name: "night owls"}, wantCode: ErrCodeRoomExists},
		{name: "max users too small", spec: RoomSpec{Name: "Raid Team", MaxUsers: 1}, wantCode: ErrCodeBadMaxUsers},
		{name: "max users too large", spec: RoomSpec{Name: "Raid Team", MaxUsers: 51}, wantCode: ErrCodeBadMaxUsers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.ValidateCreate(tt.spec)
			if tt.wantCode != "" {
				var cerr *Error
				if !errors.As(err, &cerr) || cerr.Code != tt.wantCode {
					t.Fatalf("err = %v, want code %s", err, tt.wantCode)
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("err %v is not a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != "Raid Team" || got.MaxUsers != tt.wantMax {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestAuthorizeModeration(t *testing.T) {
	d := NewRoomDirectory()
	d.Install(Room{ID: "ABC123", DisplayName: "Night Owls"})
	d.SetRole("ABC123", "alice", RoleAdmin)

	tests := []struct {
		name   string
		op     ModerationOp
		caller string
		target string
		want   error
	}{
		{name: "admin kicks", op: OpKick, caller: "alice", target: "bob"},
		{name: "member kicks", op: OpKick, caller: "bob", target: "carol", want: ErrPermission},
		{name: "admin kicks self", op: OpKick, caller: "alice", target: "alice", want: ErrInvalidTarget},
		{name: "admin bans self", op: OpBan, caller: "alice", target: "alice", want: ErrInvalidTarget},
		{name: "no target", op: OpBan, caller: "alice", target: "", want: ErrInvalidTarget},
		{name: "member promotes", op: OpPromote, caller: "bob", target: "bob", want: ErrPermission},
		{name: "admin unbans", op: OpUnban, caller: "alice", target: "dave"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.AuthorizeModeration(tt.op, tt.caller, tt.target, "ABC123")
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRolesDefaultToMember(t *testing.T) {
	d := NewRoomDirectory()
	if d.Role("gaming", "nobody") != RoleMember {
		t.Fatal("unknown membership should be member")
	}
	d.SetRole("gaming", "alice", RoleAdmin)
	d.SetRole("gaming", "alice", RoleMember)
	if d.IsAdmin("gaming", "alice") {
		t.Fatal("demotion not applied")
	}
}

func TestSyncPrivateMirrorsServerList(t *testing.T) {
	d := NewRoomDirectory()
	d.Install(Room{ID: "AAA111", DisplayName: "One"})
	d.Install(Room{ID: "BBB222", DisplayName: "Two"})
	d.Install(Room{ID: "CCC333", DisplayName: "Three"})
	d.SetRole("AAA111", "alice", RoleAdmin)

	d.SyncPrivate([]Room{{ID: "BBB222", DisplayName: "Two", Users: 3, MaxUsers: 5}}, "CCC333")

	if _, ok := d.Lookup("AAA111"); ok {
		t.Fatal("unlisted room should be forgotten")
	}
	if d.IsAdmin("AAA111", "alice") {
		t.Fatal("memberships of forgotten room should go too")
	}
	if _, ok := d.Lookup("CCC333"); !ok {
		t.Fatal("current room must be kept")
	}
	two, _ := d.Lookup("BBB222")
	if two.Users != 3 || two.MaxUsers != 5 {
		t.Fatalf("room not updated: %+v", two)
	}
}

func TestForgetKeepsBuiltins(t *testing.T) {
	d := NewRoomDirectory()
	d.SetRole("coding", "alice", RoleAdmin)
	d.Forget("coding")

	if _, ok := d.Lookup("coding"); !ok {
		t.Fatal("built-in room removed")
	}
	if d.IsAdmin("coding", "alice") {
		t.Fatal("membership not cleared")
	}
}

func TestFindByName(t *testing.T) {
	d := NewRoomDirectory()
	d.Install(Room{ID: "ABC123", DisplayName: "Night Owls"})

	r, ok := d.FindByName("night owls")
	if !ok || r.ID != "ABC123" {
		t.Fatalf("FindByName = %+v, %v", r, ok)
	}
	if _, ok := d.FindByName(""); ok {
		t.Fatal("empty name matched")
	}
}
