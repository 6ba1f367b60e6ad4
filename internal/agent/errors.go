package agent

import "fmt"

// Budget identifiers for BudgetExceededError.
const (
	BudgetTurns     = "turns"
	BudgetWallClock = "wall_clock"
)

// BudgetExceededError signals that the run hit its turn or wall-clock budget.
// Callers treat it as partial success: whatever was collected is still
// returned alongside the error.
type BudgetExceededError struct {
	Budget    string
	TurnsUsed int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("agent budget exceeded (%s) after %d turns", e.Budget, e.TurnsUsed)
}
