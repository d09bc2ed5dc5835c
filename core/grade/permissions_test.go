package grade

import (
	"testing"

	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
)

func TestPermissions(t *testing.T) {
	g := Grade{ID: "g1", StudentID: "s1", TeacherID: "t1"}

	admin := Actor{ID: "a1", Roles: []string{user.RoleAdminPrincipal}}
	owner := Actor{ID: "t1", Roles: []string{user.RoleTeacher}}
	other := Actor{ID: "t2", Roles: []string{user.RoleTeacher}}
	student := Actor{ID: "s1", Roles: []string{user.RoleStudent}}
	stranger := Actor{ID: "s2", Roles: []string{user.RoleStudent}}

	tests := []struct {
		name                                   string
		actor                                  Actor
		canEdit, canVerify, canDelete, canRead bool
	}{
		{name: "admin", actor: admin, canEdit: true, canVerify: true, canDelete: true, canRead: true},
		{name: "owner teacher", actor: owner, canEdit: true, canVerify: true, canDelete: true, canRead: true},
		{name: "other teacher", actor: other},
		{name: "own student", actor: student, canRead: true},
		{name: "other student", actor: stranger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEdit(tt.actor, g); got != tt.canEdit {
				t.Errorf("CanEdit() = %v; want %v", got, tt.canEdit)
			}
			if got := CanVerify(tt.actor, g); got != tt.canVerify {
				t.Errorf("CanVerify() = %v; want %v", got, tt.canVerify)
			}
			if got := CanDelete(tt.actor, g); got != tt.canDelete {
				t.Errorf("CanDelete() = %v; want %v", got, tt.canDelete)
			}
			if got := CanRead(tt.actor, g); got != tt.canRead {
				t.Errorf("CanRead() = %v; want %v", got, tt.canRead)
			}
		})
	}
}
