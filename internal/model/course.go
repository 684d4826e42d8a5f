package model

import "time"

// Course はコースを表す。0個以上のCourseModuleを所有する。
// EndDate > StartDate の不変条件は保存時ではなく認可エンジンが検証する。
type Course struct {
	ID          string
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	IsActive    bool
	CreatedBy   string
	// AnnouncementsURL はコースのお知らせフィード（RSS/Atom）のURL。
	// 未設定の場合、お知らせ一覧は空になる。
	AnnouncementsURL string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasValidDateRange は開始日より終了日が後であることを検証する。
func (c *Course) HasValidDateRange() bool {
	return c.EndDate.After(c.StartDate)
}

// CourseModule はコース内のモジュール（章）を表す。
// OrderIndexは表示順を定義する。重複は許容される（並び替えはUIの責務）。
type CourseModule struct {
	ID          string
	CourseID    string
	Title       string
	Description string
	OrderIndex  int
	Content     string
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Lesson はモジュール内のレッスンを表す。
type Lesson struct {
	ID              string
	ModuleID        string
	Title           string
	Content         string
	OrderIndex      int
	DurationMinutes int
	IsPublished     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
