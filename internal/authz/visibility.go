package authz

import "github.com/hitoshi/aula/internal/model"

// VisibleModules は実行者のロールに応じてモジュール一覧をフィルタする。
// 受講者には公開済み（IsPublished）のみを元の順序のまま返す。
// 管理者と講師には入力をそのまま返す（担当コースかどうかは閲覧経路では
// 検査しない。書き込み経路のみで担当を検査する）。
// 実行者が不明（nil）の場合は公開済みのみに閉じる。
func VisibleModules(actor *model.Profile, modules []*model.CourseModule) []*model.CourseModule {
	if actor != nil && !actor.IsStudent() {
		return modules
	}
	visible := make([]*model.CourseModule, 0, len(modules))
	for _, m := range modules {
		if m.IsPublished {
			visible = append(visible, m)
		}
	}
	return visible
}

// VisibleLessons は実行者のロールに応じてレッスン一覧をフィルタする。
// フィルタ規則はVisibleModulesと同一。安定フィルタであり並び替えは行わない。
func VisibleLessons(actor *model.Profile, lessons []*model.Lesson) []*model.Lesson {
	if actor != nil && !actor.IsStudent() {
		return lessons
	}
	visible := make([]*model.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l.IsPublished {
			visible = append(visible, l)
		}
	}
	return visible
}
