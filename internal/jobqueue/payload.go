package jobqueue

// SyncPayload is the sync_event job's progress payload (spec §4.H,
// step a, and §9 "replace the loose JSON dict with a tagged sum over
// per-job-type payload records"). It is serialized into Job.Payload's
// free-form JSONB column each time the worker records progress; the
// worker builds it afresh for each run and does not decode it back.
// The queue itself stays untyped so every job type shares one table.
type SyncPayload struct {
	Phase             string `json:"phase"`
	TotalListed       int    `json:"total_listed"`
	Completed         int    `json:"completed"`
	Processed         int    `json:"processed"`
	MatchedFaces      int    `json:"matched_faces"`
	RefreshedFiles    int    `json:"refreshed_files"`
	ReusedFiles       int    `json:"reused_files"`
	Failures          int    `json:"failures"`
	CurrentFileID     string `json:"current_file_id"`
	CurrentFileName   string `json:"current_file_name"`
	RefreshQueueTotal int    `json:"refresh_queue_total"`
}

// ToMap converts p into the generic payload shape Enqueue/Complete/
// UpsertPayload accept.
func (p SyncPayload) ToMap() map[string]any {
	return map[string]any{
		"phase":               p.Phase,
		"total_listed":        p.TotalListed,
		"completed":           p.Completed,
		"processed":           p.Processed,
		"matched_faces":       p.MatchedFaces,
		"refreshed_files":     p.RefreshedFiles,
		"reused_files":        p.ReusedFiles,
		"failures":            p.Failures,
		"current_file_id":     p.CurrentFileID,
		"current_file_name":   p.CurrentFileName,
		"refresh_queue_total": p.RefreshQueueTotal,
	}
}

// ClusterPayload is the cluster_event job's completion payload (spec
// §4.H "Cluster job").
type ClusterPayload struct {
	ClusterCount int `json:"cluster_count"`
}

func (p ClusterPayload) ToMap() map[string]any {
	return map[string]any{"cluster_count": p.ClusterCount}
}

// MatchPayload is the match_guest job's completion payload (spec §4.H
// "Match job", step g).
type MatchPayload struct {
	Confidence             float64 `json:"confidence"`
	Photos                 int     `json:"photos"`
	ThresholdPercent       float64 `json:"threshold_percent"`
	AdaptiveThresholdUsed  bool    `json:"adaptive_threshold_used"`
}

func (p MatchPayload) ToMap() map[string]any {
	return map[string]any{
		"confidence":              p.Confidence,
		"photos":                  p.Photos,
		"threshold_percent":       p.ThresholdPercent,
		"adaptive_threshold_used": p.AdaptiveThresholdUsed,
	}
}
