package store

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

type GoalStore struct {
	db *sqlx.DB
}

func NewGoalStore(db *sqlx.DB) *GoalStore {
	return &GoalStore{db: db}
}

func scanGoal(scanner interface{ Scan(...any) error }) (*model.Goal, error) {
	var g model.Goal
	var createdBy sql.NullInt64

	err := scanner.Scan(
		&g.ID, &g.Title, &g.Description, &g.ProjectID, &g.TargetValue,
		&g.CurrentValue, &createdBy, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.CreatedBy = int64Ptr(createdBy)
	return &g, nil
}

const goalCols = `id, title, description, project_id, target_value, current_value, created_by, created_at, updated_at`

func (s *GoalStore) Create(g model.Goal) (*model.Goal, error) {
	result, err := s.db.Exec(
		`INSERT INTO goals (title, description, project_id, target_value, current_value, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		g.Title, g.Description, g.ProjectID, g.TargetValue, g.CurrentValue, nullInt64(g.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *GoalStore) GetByID(id int64) (*model.Goal, error) {
	row := s.db.QueryRow(`SELECT `+goalCols+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// List returns goals newest first, optionally for one project.
func (s *GoalStore) List(projectID int64) ([]model.Goal, error) {
	query := `SELECT ` + goalCols + ` FROM goals`
	var args []any
	if projectID != 0 {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (s *GoalStore) Update(g model.Goal) (*model.Goal, error) {
	_, err := s.db.Exec(
		`UPDATE goals SET title = ?, description = ?, project_id = ?, target_value = ?, current_value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		g.Title, g.Description, g.ProjectID, g.TargetValue, g.CurrentValue, g.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	return s.GetByID(g.ID)
}

func (s *GoalStore) SetCurrentValue(id int64, value float64) (*model.Goal, error) {
	_, err := s.db.Exec(`UPDATE goals SET current_value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, value, id)
	if err != nil {
		return nil, fmt.Errorf("set goal progress: %w", err)
	}
	return s.GetByID(id)
}

func (s *GoalStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}
