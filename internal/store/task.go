package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

type TaskStore struct {
	db *sqlx.DB
}

func NewTaskStore(db *sqlx.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var assignedTo, parentID, createdBy sql.NullInt64
	var dueDate sql.NullString

	err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &t.ProjectID, &assignedTo, &parentID,
		&t.Status, &t.Priority, &dueDate, &createdBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.AssignedTo = int64Ptr(assignedTo)
	t.ParentTaskID = int64Ptr(parentID)
	t.DueDate = stringPtr(dueDate)
	t.CreatedBy = int64Ptr(createdBy)
	return &t, nil
}

const taskCols = `id, title, description, project_id, assigned_to, parent_task_id, status, priority, due_date, created_by, created_at, updated_at`

func (s *TaskStore) Create(t model.Task) (*model.Task, error) {
	result, err := s.db.Exec(
		`INSERT INTO tasks (title, description, project_id, assigned_to, parent_task_id, status, priority, due_date, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.ProjectID, nullInt64(t.AssignedTo), nullInt64(t.ParentTaskID),
		t.Status, t.Priority, nullString(t.DueDate), nullInt64(t.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// List returns tasks newest first, narrowed by the filter.
func (s *TaskStore) List(f model.TaskFilter) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE 1 = 1`
	var args []any
	if strings.TrimSpace(f.Search) != "" {
		query += ` AND (lower(title) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`
		p := likePattern(f.Search)
		args = append(args, p, p)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, f.Priority)
	}
	if f.ProjectID != 0 {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.AssignedTo != 0 {
		query += ` AND assigned_to = ?`
		args = append(args, f.AssignedTo)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListDueBetween returns assigned, unfinished tasks whose due date falls in [from, to].
// Dates are YYYY-MM-DD strings.
func (s *TaskStore) ListDueBetween(from, to string) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE due_date IS NOT NULL AND due_date BETWEEN ? AND ?
		   AND status != 'completed' AND assigned_to IS NOT NULL
		 ORDER BY due_date, id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *TaskStore) Update(t model.Task) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, project_id = ?, assigned_to = ?, parent_task_id = ?,
		   status = ?, priority = ?, due_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		t.Title, t.Description, t.ProjectID, nullInt64(t.AssignedTo), nullInt64(t.ParentTaskID),
		t.Status, t.Priority, nullString(t.DueDate), t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(t.ID)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
