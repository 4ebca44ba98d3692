package service

import "time"

// SetNow swaps the evaluator's clock for deterministic window tests.
func (e *StakeLimitEvaluator) SetNow(now func() time.Time) {
	e.now = now
}
