package estimate

import "fmt"

// Config scopes the searches and sets the hour budgets.
type Config struct {
	BudgetHours           float64   `json:"budget_hours"`
	AcceptanceBudgetHours float64   `json:"acceptance_budget_hours"`
	MaxResults            int       `json:"max_results"`
	TodoStatus            string    `json:"todo_status"`
	AcceptanceStatus      string    `json:"acceptance_status"`
	IssueType             string    `json:"issue_type"`
	Keywords              *Keywords `json:"keywords"`
}

// SetDefaults applies the budgets the project plan was sized with.
func (c *Config) SetDefaults() {
	if c.BudgetHours <= 0 {
		c.BudgetHours = 120
	}
	if c.AcceptanceBudgetHours <= 0 {
		c.AcceptanceBudgetHours = 20
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 100
	}
	if c.TodoStatus == "" {
		c.TodoStatus = "To Do"
	}
	if c.AcceptanceStatus == "" {
		c.AcceptanceStatus = "Acceptance Test"
	}
	if c.IssueType == "" {
		c.IssueType = "Sub-task"
	}
}

// Validate checks the budgets are positive.
func (c Config) Validate() error {
	if c.BudgetHours <= 0 || c.AcceptanceBudgetHours <= 0 {
		return fmt.Errorf("estimate budgets must be positive")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive")
	}
	return nil
}

func (c Config) keywords() Keywords {
	if c.Keywords != nil {
		return *c.Keywords
	}
	return DefaultKeywords
}
