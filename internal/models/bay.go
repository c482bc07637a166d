package models

// Bay identifiers are positive and dense starting at 1; id 0 is reserved.
type Bay struct {
	BayID    int    `json:"bay_id"`
	Area     string `json:"area,omitempty"`
	Occupied bool   `json:"occupied"`
}

type Worker struct {
	WorkerID int64  `json:"worker_id"`
	Name     string `json:"name"`
}
