package model

// Skip reasons recorded by the ingestion pipeline. Every skipped record is
// counted under exactly one of these.
const (
	SkipNotADict               = "not-a-dict"
	SkipMissingRequiredFields  = "missing-required-fields"
	SkipDuplicate              = "duplicate"
	SkipDuplicateTitleCategory = "duplicate-title-category"
)

// Report summarizes one ingestion run or one source file within a run.
type Report struct {
	Source      string         `json:"source,omitempty"`
	Imported    int            `json:"imported"`
	Skipped     int            `json:"skipped"`
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`

	// TotalPlaces is the store size after the run completed.
	TotalPlaces int `json:"total_places"`
}

// Merge folds another report's counters into this one.
func (r *Report) Merge(other Report) {
	r.Imported += other.Imported
	r.Skipped += other.Skipped
	for reason, n := range other.SkipReasons {
		if r.SkipReasons == nil {
			r.SkipReasons = make(map[string]int)
		}
		r.SkipReasons[reason] += n
	}
}

// CountSkip records one skipped record under its reason, advancing both the
// total and the per-reason counter.
func (r *Report) CountSkip(reason string) {
	r.Skipped++
	if r.SkipReasons == nil {
		r.SkipReasons = make(map[string]int)
	}
	r.SkipReasons[reason]++
}
