package posting

// SubmitRequest is the payload of the "create posting job" call.
type SubmitRequest struct {
	StoreID   string `json:"store_id" validate:"required"`
	ReviewID  string `json:"review_id" validate:"required"`
	Author    string `json:"author"`
	Date      string `json:"date"`
	Content   string `json:"content"`
	ReplyText string `json:"reply_text" validate:"required,max=4000"`
}

// RemoteStatus is what the "get job status" endpoint returns.
type RemoteStatus struct {
	JobID           string  `json:"job_id"`
	Status          Status  `json:"status"`
	PositionInQueue int     `json:"position_in_queue"`
	EstimatedTime   float64 `json:"estimated_time"`
	StartedAt       *string `json:"started_at"`
	Author          string  `json:"author,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}
