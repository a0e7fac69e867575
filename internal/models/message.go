package models

// DispatchMessage is the transport payload carried on the dispatch queue from
// ingestion to the pipeline workers. Everything the executor needs beyond the
// durable job record travels here so a worker can start without an extra
// round-trip.
type DispatchMessage struct {
	JobID         string `json:"job_id"`
	VideoLocation string `json:"video_location"`
	UserHint      string `json:"user_hint"`
	HappenedAt    int64  `json:"happened_at"`
}
