package entity

import "time"

type ReportRow struct {
	Name  string
	Link  string
	Size  string
	Score string
	Tier  string
}

type ReportRule struct {
	Order     int
	Condition string
	Delta     string
	Stop      bool
}

type ReportTier struct {
	Name  string
	Count int
}

// Report is the data of a rendered selection.
type Report struct {
	Title     string
	CreatedAt time.Time
	Pool      int
	Required  string
	Preferred string
	Target    int
	Tiers     []ReportTier
	Rows      []ReportRow
	Rules     []ReportRule
}
