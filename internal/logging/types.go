package logging

import "time"

// #region cycle-entry
// CycleEntry is a single row in the cycle_log table.
type CycleEntry struct {
	CycleID    string
	Profile    string
	Predicted  string // "" when no prediction was available
	Chosen     string
	Outcome    int // 1 hit, 0 miss
	Cursor     int
	Persisted  bool
	Unknown    bool
	Reason     string
	DetailJSON string
	CreatedAt  time.Time
}

// #endregion cycle-entry

// #region cycle-detail
// CycleDetail captures what the predictor saw for one cycle.
// Serialized as JSON into cycle_log.detail_json for later replay.
type CycleDetail struct {
	Confidence float64       `json:"confidence"`
	HitRate    float64       `json:"hit_rate"`
	Records    int           `json:"records"`
	TreeDepth  int           `json:"tree_depth"`
	Ranking    []RankedLabel `json:"ranking,omitempty"`
}

// RankedLabel is one application score at prediction time.
type RankedLabel struct {
	Application string  `json:"application"`
	Score       float64 `json:"score"`
}

// #endregion cycle-detail
