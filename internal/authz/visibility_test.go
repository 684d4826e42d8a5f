package authz

import (
	"testing"

	"github.com/hitoshi/aula/internal/model"
)

func modulesFixture() []*model.CourseModule {
	return []*model.CourseModule{
		{ID: "m1", OrderIndex: 1, IsPublished: true},
		{ID: "m2", OrderIndex: 2, IsPublished: false},
		{ID: "m3", OrderIndex: 3, IsPublished: true},
		{ID: "m4", OrderIndex: 3, IsPublished: false}, // OrderIndexの重複は許容される
		{ID: "m5", OrderIndex: 5, IsPublished: true},
	}
}

// TestVisibleModules_Student は受講者に公開済みのみが元の順序で返ることを検証する。
func TestVisibleModules_Student(t *testing.T) {
	got := VisibleModules(student, modulesFixture())

	wantIDs := []string{"m1", "m3", "m5"}
	if len(got) != len(wantIDs) {
		t.Fatalf("len = %d, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %s, want %s", i, got[i].ID, id)
		}
		if !got[i].IsPublished {
			t.Errorf("got[%d] must be published", i)
		}
	}
}

// TestVisibleModules_AdminAndTeacher は管理者・講師に入力がそのまま返ることを検証する。
// 講師は担当外のコースでも未公開を閲覧できる（閲覧経路では担当を検査しない）。
func TestVisibleModules_AdminAndTeacher(t *testing.T) {
	mods := modulesFixture()

	for _, actor := range []*model.Profile{admin, teacher} {
		got := VisibleModules(actor, mods)
		if len(got) != len(mods) {
			t.Fatalf("%s: len = %d, want %d", actor.Role, len(got), len(mods))
		}
		for i := range mods {
			if got[i] != mods[i] {
				t.Errorf("%s: got[%d] differs from input", actor.Role, i)
			}
		}
	}
}

// TestVisibleModules_NilActor は実行者不明の場合に公開済みへ閉じることを検証する。
func TestVisibleModules_NilActor(t *testing.T) {
	got := VisibleModules(nil, modulesFixture())
	for _, m := range got {
		if !m.IsPublished {
			t.Errorf("module %s must be published", m.ID)
		}
	}
}

// TestVisibleModules_Empty は空入力に対して空が返ることを検証する。
func TestVisibleModules_Empty(t *testing.T) {
	if got := VisibleModules(student, nil); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

// TestVisibleLessons_Student は受講者へのレッスンフィルタを検証する。
func TestVisibleLessons_Student(t *testing.T) {
	lessons := []*model.Lesson{
		{ID: "l1", IsPublished: false},
		{ID: "l2", IsPublished: true},
		{ID: "l3", IsPublished: true},
	}

	got := VisibleLessons(student, lessons)
	wantIDs := []string{"l2", "l3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("len = %d, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %s, want %s", i, got[i].ID, id)
		}
	}
}

// TestVisibleLessons_Teacher は講師に全レッスンが返ることを検証する。
func TestVisibleLessons_Teacher(t *testing.T) {
	lessons := []*model.Lesson{
		{ID: "l1", IsPublished: false},
		{ID: "l2", IsPublished: true},
	}
	if got := VisibleLessons(teacher, lessons); len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}
