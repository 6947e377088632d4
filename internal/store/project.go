package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

type ProjectStore struct {
	db *sqlx.DB
}

func NewProjectStore(db *sqlx.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func scanProject(scanner interface{ Scan(...any) error }) (*model.Project, error) {
	var p model.Project
	var deadline sql.NullString
	var budget sql.NullFloat64
	var createdBy sql.NullInt64

	err := scanner.Scan(
		&p.ID, &p.Title, &p.Description, &deadline, &budget,
		&p.Status, &createdBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Deadline = stringPtr(deadline)
	p.Budget = float64Ptr(budget)
	p.CreatedBy = int64Ptr(createdBy)
	return &p, nil
}

const projectCols = `id, title, description, deadline, budget, status, created_by, created_at, updated_at`

func (s *ProjectStore) Create(p model.Project) (*model.Project, error) {
	result, err := s.db.Exec(
		`INSERT INTO projects (title, description, deadline, budget, status, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, nullString(p.Deadline), nullFloat64(p.Budget), p.Status, nullInt64(p.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProjectStore) GetByID(id int64) (*model.Project, error) {
	row := s.db.QueryRow(`SELECT `+projectCols+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// List returns projects newest first. Search matches title or description case-insensitively.
func (s *ProjectStore) List(f model.ProjectFilter) ([]model.Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects WHERE 1 = 1`
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
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *ProjectStore) Update(p model.Project) (*model.Project, error) {
	_, err := s.db.Exec(
		`UPDATE projects SET title = ?, description = ?, deadline = ?, budget = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Title, p.Description, nullString(p.Deadline), nullFloat64(p.Budget), p.Status, p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return s.GetByID(p.ID)
}

// Delete removes the project along with its tasks, goals and expenses.
func (s *ProjectStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
