package usecase

import "time"

// SetHygieneNow replaces the clock used by cleanup
func SetHygieneNow(uc *HygieneUseCase, now func() time.Time) {
	uc.now = now
}

// PlanAdherence is exported for testing
var PlanAdherence = planAdherence
