package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeProgress  WSMessageType = "progress"
	WSMessageTypeCompleted WSMessageType = "completed"
	WSMessageTypeFailed    WSMessageType = "failed"
	WSMessageTypePing      WSMessageType = "ping"
	WSMessageTypePong      WSMessageType = "pong"
)

// WSMessage is the generic envelope used for client keep-alive traffic.
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSProgressMessage streams per-pass progress to job subscribers.
type WSProgressMessage struct {
	Type            WSMessageType `json:"type"`
	JobID           string        `json:"jobId"`
	Status          JobStatus     `json:"status"`
	Pass            PassID        `json:"pass"`
	PassStatus      PassStatus    `json:"passStatus"`
	SectionsDone    int           `json:"sectionsDone"`
	SectionsTotal   int           `json:"sectionsTotal"`
}

// WSCompletedMessage carries the final verdict and result summary.
type WSCompletedMessage struct {
	Type    WSMessageType   `json:"type"`
	JobID   string          `json:"jobId"`
	Status  JobStatus       `json:"status"`
	Verdict *QualityVerdict `json:"verdict,omitempty"`
	Result  *DocumentResult `json:"result,omitempty"`
}

// WSErrorMessage reports a failed job.
type WSErrorMessage struct {
	Type  WSMessageType `json:"type"`
	JobID string        `json:"jobId"`
	Error string        `json:"error"`
}
