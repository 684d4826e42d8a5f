package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/aula/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
// course_teachers（講師割り当て）の操作も担当する。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

const courseColumns = `id, title, description, start_date, end_date, is_active, created_by, announcements_url, created_at, updated_at`

func scanCourse(scan func(dest ...any) error) (*model.Course, error) {
	course := &model.Course{}
	err := scan(
		&course.ID, &course.Title, &course.Description,
		&course.StartDate, &course.EndDate, &course.IsActive,
		&course.CreatedBy, &course.AnnouncementsURL,
		&course.CreatedAt, &course.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return course, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	)
	course, err := scanCourse(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	return course, nil
}

// List は全コースを開始日順で返す。
func (r *PostgresCourseRepo) List(ctx context.Context) ([]*model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses ORDER BY start_date, created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		course, err := scanCourse(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}

	return courses, nil
}

// Create はコースを作成する。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (id, title, description, start_date, end_date, is_active, created_by, announcements_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		course.ID, course.Title, course.Description,
		course.StartDate, course.EndDate, course.IsActive,
		course.CreatedBy, course.AnnouncementsURL,
		course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

// Update はコースを更新する。
func (r *PostgresCourseRepo) Update(ctx context.Context, course *model.Course) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE courses
		 SET title = $1, description = $2, start_date = $3, end_date = $4,
		     is_active = $5, announcements_url = $6, updated_at = $7
		 WHERE id = $8`,
		course.Title, course.Description, course.StartDate, course.EndDate,
		course.IsActive, course.AnnouncementsURL, course.UpdatedAt, course.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("course not found: %s", course.ID)
	}
	return nil
}

// Delete は指定IDのコースを削除する。
// 所有するモジュール・レッスン・講師割り当てはCASCADE削除される。
func (r *PostgresCourseRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM courses WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("course not found: %s", id)
	}
	return nil
}

// ListTeacherIDs はコースに割り当て済みの講師のuserID一覧を返す。
func (r *PostgresCourseRepo) ListTeacherIDs(ctx context.Context, courseID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT teacher_user_id FROM course_teachers WHERE course_id = $1 ORDER BY assigned_at`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list course teachers: %w", err)
	}
	defer rows.Close()

	var teacherIDs []string
	for rows.Next() {
		var teacherID string
		if err := rows.Scan(&teacherID); err != nil {
			return nil, fmt.Errorf("failed to scan teacher ID: %w", err)
		}
		teacherIDs = append(teacherIDs, teacherID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate course teachers: %w", err)
	}

	return teacherIDs, nil
}

// IsTeacherAssigned は講師がコースに割り当て済みかを返す。
func (r *PostgresCourseRepo) IsTeacherAssigned(ctx context.Context, courseID, teacherUserID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM course_teachers WHERE course_id = $1 AND teacher_user_id = $2
		 )`,
		courseID, teacherUserID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check teacher assignment: %w", err)
	}
	return exists, nil
}

// AssignTeacher は講師をコースに割り当てる。
func (r *PostgresCourseRepo) AssignTeacher(ctx context.Context, courseID, teacherUserID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO course_teachers (course_id, teacher_user_id, assigned_at)
		 VALUES ($1, $2, now())`,
		courseID, teacherUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign teacher: %w", err)
	}
	return nil
}

// RemoveTeacher は講師の割り当てを解除する。
func (r *PostgresCourseRepo) RemoveTeacher(ctx context.Context, courseID, teacherUserID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM course_teachers WHERE course_id = $1 AND teacher_user_id = $2`,
		courseID, teacherUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove teacher: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("assignment not found: course=%s teacher=%s", courseID, teacherUserID)
	}
	return nil
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
