package model

import "testing"

// TestProfile_RolePredicates は各ロールでちょうど1つの述語だけが真になることを検証する。
func TestProfile_RolePredicates(t *testing.T) {
	tests := []struct {
		role        Role
		wantAdmin   bool
		wantTeacher bool
		wantStudent bool
	}{
		{RoleAdmin, true, false, false},
		{RoleTeacher, false, true, false},
		{RoleStudent, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			p := Profile{Role: tt.role}
			if p.IsAdmin() != tt.wantAdmin {
				t.Errorf("IsAdmin() = %v, want %v", p.IsAdmin(), tt.wantAdmin)
			}
			if p.IsTeacher() != tt.wantTeacher {
				t.Errorf("IsTeacher() = %v, want %v", p.IsTeacher(), tt.wantTeacher)
			}
			if p.IsStudent() != tt.wantStudent {
				t.Errorf("IsStudent() = %v, want %v", p.IsStudent(), tt.wantStudent)
			}

			// ちょうど1つだけ真であること
			trueCount := 0
			for _, b := range []bool{p.IsAdmin(), p.IsTeacher(), p.IsStudent()} {
				if b {
					trueCount++
				}
			}
			if trueCount != 1 {
				t.Errorf("exactly one predicate must be true, got %d", trueCount)
			}
		})
	}
}

// TestRole_IsValid はロール値の検証を確認する。
func TestRole_IsValid(t *testing.T) {
	for _, r := range []Role{RoleStudent, RoleTeacher, RoleAdmin} {
		if !r.IsValid() {
			t.Errorf("Role %q should be valid", r)
		}
	}
	for _, r := range []Role{"", "superadmin", "Student"} {
		if r.IsValid() {
			t.Errorf("Role %q should be invalid", r)
		}
	}
}

// TestProfile_FullName は姓名の結合を検証する。
func TestProfile_FullName(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"姓名あり", Profile{FirstName: "Ana", LastName: "García"}, "Ana García"},
		{"名のみ", Profile{FirstName: "Ana"}, "Ana"},
		{"姓のみ", Profile{LastName: "García"}, "García"},
		{"両方空", Profile{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}
