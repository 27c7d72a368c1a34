package model

import "time"

const (
	ExhaustedTime = "time_exhausted"
	ExhaustedData = "data_exhausted"
)

// Quota is the remaining entitlement of a session at a point in time.
type Quota struct {
	RemainingTime  time.Duration
	RemainingBytes int64 // meaningless when Unlimited
	Unlimited      bool
	Exhausted      bool
	Reason         string
}

// QuotaAt computes remaining time and data purely from stored fields, so the
// result is the same before and after a restart.
//
//	remaining     = duration + Σextensions − (now − start)
//	remainingData = cap − (in + out), cap 0 = unlimited
func (s *Session) QuotaAt(now time.Time) Quota {
	q := Quota{
		RemainingTime: s.Deadline().Sub(now),
		Unlimited:     s.DataCapBytes == 0,
	}
	if !q.Unlimited {
		q.RemainingBytes = s.DataCapBytes - s.DataUsed()
	}
	switch {
	case q.RemainingTime <= 0:
		q.Exhausted, q.Reason = true, ExhaustedTime
	case !q.Unlimited && q.RemainingBytes <= 0:
		q.Exhausted, q.Reason = true, ExhaustedData
	}
	return q
}

// SweepResult summarizes one enforcer pass.
type SweepResult struct {
	Checked int
	Expired int
	Failed  int
}
