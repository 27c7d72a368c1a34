package model

import (
	"time"

	"bytebill/internal/domain"
)

type ChartKind string

const (
	ChartSessions  ChartKind = "sessions"
	ChartRevenue   ChartKind = "revenue"
	ChartDataUsage ChartKind = "data-usage"
)

type ChartPeriod string

const (
	Period24h ChartPeriod = "24h"
	Period7d  ChartPeriod = "7d"
	Period30d ChartPeriod = "30d"
)

// DefaultPeriod is used when a chart request names no period.
func (k ChartKind) DefaultPeriod() ChartPeriod {
	if k == ChartRevenue {
		return Period30d
	}
	return Period7d
}

func ParseChartKind(s string) (ChartKind, error) {
	switch k := ChartKind(s); k {
	case ChartSessions, ChartRevenue, ChartDataUsage:
		return k, nil
	}
	return "", domain.ErrInvalidChart
}

func ParseChartPeriod(s string) (ChartPeriod, error) {
	switch p := ChartPeriod(s); p {
	case Period24h, Period7d, Period30d:
		return p, nil
	}
	return "", domain.ErrInvalidChart
}

// Window returns the first bucket start, the bucket width and the bucket
// count. Buckets are UTC aligned and the last one holds now.
func (p ChartPeriod) Window(now time.Time) (time.Time, time.Duration, int) {
	step, n := 24*time.Hour, 7
	switch p {
	case Period24h:
		step, n = time.Hour, 24
	case Period30d:
		n = 30
	}
	last := now.UTC().Truncate(step)
	return last.Add(-time.Duration(n-1) * step), step, n
}

// Bucket is one slot of a dashboard time series. Sessions fill Count and the
// byte totals; revenue fills Count and Amount.
type Bucket struct {
	Start    time.Time
	Count    int64
	Amount   int64
	BytesIn  int64
	BytesOut int64
}

type Series struct {
	Kind    ChartKind
	Period  ChartPeriod
	Step    time.Duration
	Buckets []Bucket
}

type AlertLevel string

const (
	AlertWarning AlertLevel = "warning"
	AlertInfo    AlertLevel = "info"
)

type Alert struct {
	Code    string
	Level   AlertLevel
	Title   string
	Message string
	Count   int64
	At      time.Time
}
