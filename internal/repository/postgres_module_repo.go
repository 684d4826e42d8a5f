package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/aula/internal/model"
)

// PostgresModuleRepo はPostgreSQLを使用したモジュールリポジトリ。
type PostgresModuleRepo struct {
	db *sql.DB
}

// NewPostgresModuleRepo はPostgresModuleRepoを生成する。
func NewPostgresModuleRepo(db *sql.DB) *PostgresModuleRepo {
	return &PostgresModuleRepo{db: db}
}

const moduleColumns = `id, course_id, title, description, order_index, content, is_published, created_at, updated_at`

func scanModule(scan func(dest ...any) error) (*model.CourseModule, error) {
	module := &model.CourseModule{}
	err := scan(
		&module.ID, &module.CourseID, &module.Title, &module.Description,
		&module.OrderIndex, &module.Content, &module.IsPublished,
		&module.CreatedAt, &module.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return module, nil
}

// FindByID は指定IDのモジュールを取得する。見つからない場合はnilを返す。
func (r *PostgresModuleRepo) FindByID(ctx context.Context, id string) (*model.CourseModule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+moduleColumns+` FROM course_modules WHERE id = $1`,
		id,
	)
	module, err := scanModule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find module: %w", err)
	}
	return module, nil
}

// ListByCourseID はコースのモジュール一覧をorder_index昇順で返す。
// order_indexが同値の場合は作成日時順。
func (r *PostgresModuleRepo) ListByCourseID(ctx context.Context, courseID string) ([]*model.CourseModule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+moduleColumns+` FROM course_modules
		 WHERE course_id = $1
		 ORDER BY order_index, created_at`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []*model.CourseModule
	for rows.Next() {
		module, err := scanModule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, module)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate modules: %w", err)
	}

	return modules, nil
}

// Create はモジュールを作成する。
func (r *PostgresModuleRepo) Create(ctx context.Context, module *model.CourseModule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO course_modules (id, course_id, title, description, order_index, content, is_published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		module.ID, module.CourseID, module.Title, module.Description,
		module.OrderIndex, module.Content, module.IsPublished,
		module.CreatedAt, module.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert module: %w", err)
	}
	return nil
}

// Update はモジュールを更新する。
func (r *PostgresModuleRepo) Update(ctx context.Context, module *model.CourseModule) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE course_modules
		 SET title = $1, description = $2, order_index = $3, content = $4,
		     is_published = $5, updated_at = $6
		 WHERE id = $7`,
		module.Title, module.Description, module.OrderIndex, module.Content,
		module.IsPublished, module.UpdatedAt, module.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update module: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("module not found: %s", module.ID)
	}
	return nil
}

// Delete は指定IDのモジュールを削除する。所有レッスンはCASCADE削除される。
func (r *PostgresModuleRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM course_modules WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("module not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ModuleRepository = (*PostgresModuleRepo)(nil)
