package store

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/model"
)

type ExpenseStore struct {
	db *sqlx.DB
}

func NewExpenseStore(db *sqlx.DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

func scanExpense(scanner interface{ Scan(...any) error }) (*model.Expense, error) {
	var e model.Expense
	var taskID, createdBy sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.Amount, &e.Description, &e.ProjectID, &taskID,
		&e.ExpenseDate, &createdBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.TaskID = int64Ptr(taskID)
	e.CreatedBy = int64Ptr(createdBy)
	return &e, nil
}

const expenseCols = `id, amount, description, project_id, task_id, expense_date, created_by, created_at, updated_at`

func (s *ExpenseStore) Create(e model.Expense) (*model.Expense, error) {
	result, err := s.db.Exec(
		`INSERT INTO expenses (amount, description, project_id, task_id, expense_date, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Amount, e.Description, e.ProjectID, nullInt64(e.TaskID), e.ExpenseDate, nullInt64(e.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ExpenseStore) GetByID(id int64) (*model.Expense, error) {
	row := s.db.QueryRow(`SELECT `+expenseCols+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// List returns expenses by expense date, newest first, optionally for one project.
func (s *ExpenseStore) List(projectID int64) ([]model.Expense, error) {
	query := `SELECT ` + expenseCols + ` FROM expenses`
	var args []any
	if projectID != 0 {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY expense_date DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []model.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (s *ExpenseStore) Update(e model.Expense) (*model.Expense, error) {
	_, err := s.db.Exec(
		`UPDATE expenses SET amount = ?, description = ?, project_id = ?, task_id = ?, expense_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		e.Amount, e.Description, e.ProjectID, nullInt64(e.TaskID), e.ExpenseDate, e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return s.GetByID(e.ID)
}

func (s *ExpenseStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// ProjectTotal sums a project's expenses, leaving out excludeID (0 excludes nothing).
func (s *ExpenseStore) ProjectTotal(projectID, excludeID int64) (float64, error) {
	var total float64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE project_id = ? AND id != ?`,
		projectID, excludeID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum project expenses: %w", err)
	}
	return total, nil
}
