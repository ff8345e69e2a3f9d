package models

// UsageCounter is one (identity, service, day) row. Monthly totals are
// derived by summing rows, never stored.
type UsageCounter struct {
	Identity    string `json:"identity"`
	ServiceType string `json:"service_type"`
	Day         string `json:"day"` // YYYY-MM-DD, UTC
	DailyCount  int    `json:"daily_count"`
}

// UsageStatus is the caller-facing view of a service's counters.
type UsageStatus struct {
	ServiceType  string `json:"serviceType"`
	Daily        int    `json:"daily"`
	Monthly      int    `json:"monthly"`
	DailyLimit   int    `json:"dailyLimit"`
	MonthlyLimit int    `json:"monthlyLimit"`
}
