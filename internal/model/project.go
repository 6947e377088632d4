package model

import "time"

type Project struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    *string   `json:"deadline"`
	Budget      *float64  `json:"budget"`
	Status      string    `json:"status"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectFilter struct {
	Search string
	Status string
}

type Task struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ProjectID    int64     `json:"project_id"`
	AssignedTo   *int64    `json:"assigned_to"`
	ParentTaskID *int64    `json:"parent_task_id"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	DueDate      *string   `json:"due_date"`
	CreatedBy    *int64    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type TaskFilter struct {
	Search     string
	Status     string
	Priority   string
	ProjectID  int64
	AssignedTo int64
}

type Goal struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ProjectID    int64     `json:"project_id"`
	TargetValue  float64   `json:"target_value"`
	CurrentValue float64   `json:"current_value"`
	CreatedBy    *int64    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Expense struct {
	ID          int64     `json:"id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	ProjectID   int64     `json:"project_id"`
	TaskID      *int64    `json:"task_id"`
	ExpenseDate string    `json:"expense_date"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
