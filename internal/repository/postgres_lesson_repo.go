package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/aula/internal/model"
)

// PostgresLessonRepo はPostgreSQLを使用したレッスンリポジトリ。
type PostgresLessonRepo struct {
	db *sql.DB
}

// NewPostgresLessonRepo はPostgresLessonRepoを生成する。
func NewPostgresLessonRepo(db *sql.DB) *PostgresLessonRepo {
	return &PostgresLessonRepo{db: db}
}

const lessonColumns = `id, module_id, title, content, order_index, duration_minutes, is_published, created_at, updated_at`

func scanLesson(scan func(dest ...any) error) (*model.Lesson, error) {
	lesson := &model.Lesson{}
	err := scan(
		&lesson.ID, &lesson.ModuleID, &lesson.Title, &lesson.Content,
		&lesson.OrderIndex, &lesson.DurationMinutes, &lesson.IsPublished,
		&lesson.CreatedAt, &lesson.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// FindByID は指定IDのレッスンを取得する。見つからない場合はnilを返す。
func (r *PostgresLessonRepo) FindByID(ctx context.Context, id string) (*model.Lesson, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = $1`,
		id,
	)
	lesson, err := scanLesson(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lesson: %w", err)
	}
	return lesson, nil
}

// ListByModuleID はモジュールのレッスン一覧をorder_index昇順で返す。
func (r *PostgresLessonRepo) ListByModuleID(ctx context.Context, moduleID string) ([]*model.Lesson, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons
		 WHERE module_id = $1
		 ORDER BY order_index, created_at`,
		moduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lessons: %w", err)
	}

	return lessons, nil
}

// Create はレッスンを作成する。
func (r *PostgresLessonRepo) Create(ctx context.Context, lesson *model.Lesson) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lessons (id, module_id, title, content, order_index, duration_minutes, is_published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lesson.ID, lesson.ModuleID, lesson.Title, lesson.Content,
		lesson.OrderIndex, lesson.DurationMinutes, lesson.IsPublished,
		lesson.CreatedAt, lesson.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lesson: %w", err)
	}
	return nil
}

// Update はレッスンを更新する。
func (r *PostgresLessonRepo) Update(ctx context.Context, lesson *model.Lesson) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lessons
		 SET title = $1, content = $2, order_index = $3, duration_minutes = $4,
		     is_published = $5, updated_at = $6
		 WHERE id = $7`,
		lesson.Title, lesson.Content, lesson.OrderIndex, lesson.DurationMinutes,
		lesson.IsPublished, lesson.UpdatedAt, lesson.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("lesson not found: %s", lesson.ID)
	}
	return nil
}

// Delete は指定IDのレッスンを削除する。
func (r *PostgresLessonRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM lessons WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("lesson not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ LessonRepository = (*PostgresLessonRepo)(nil)
