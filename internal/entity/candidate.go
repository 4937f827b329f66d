package entity

import "time"

// Candidate is one magnet record scraped from a page.
type Candidate struct {
	ID   string `yaml:"id" json:"id"`     // Stable hash of the magnet info hash or link
	Name string `yaml:"name" json:"name"` // Display name, usually the file name
	Size int64  `yaml:"size" json:"size"` // Size in bytes
	Date string `yaml:"date" json:"date"` // Publish date as found on the page, may be empty or malformed
	Link string `yaml:"link" json:"link"` // Magnet URI, passed through untouched
	Page string `yaml:"page" json:"page"` // Source page the record was found on
}

// MagnetScore is derived on every scoring pass and never stored on its own.
type MagnetScore struct {
	Candidate    *Candidate `json:"candidate"`
	DefaultScore float64    `json:"defaultScore"`
	FinalScore   float64    `json:"finalScore"`
}

type SelectionSettings struct {
	RequiredThreshold  int64 `yaml:"required_threshold" json:"requiredThreshold"`
	PreferredThreshold int64 `yaml:"preferred_threshold" json:"preferredThreshold"`
	TargetCount        int   `yaml:"target_count" json:"targetCount" validate:"gte=0"`
}

// Selection is what a pick run produced.
type Selection struct {
	CandidateIDs []string  `json:"candidateIds"`
	Required     int       `json:"required"`  // Taken from tier 1
	Preferred    int       `json:"preferred"` // Taken from tier 2
	Fallback     int       `json:"fallback"`  // Taken from the size ordered remainder
	Pool         int       `json:"pool"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Page is a saved listing page together with the candidates found on it.
type Page struct {
	ID         string
	Title      string
	URL        string
	ShareDate  string
	SourcePath string
	Candidates []*Candidate
}
