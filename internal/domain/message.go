package domain

// Message is a rendered notification owned by the dispatch worker for
// the duration of a send attempt.
type Message struct {
	Channel   ChannelType `json:"channel"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject,omitempty"`
	Body      string      `json:"body"`
	UserID    string      `json:"user_id,omitempty"`
}

// DeliveryResult is emitted once per send attempt for observability.
type DeliveryResult struct {
	JobID     string      `json:"job_id"`
	Channel   ChannelType `json:"channel"`
	Recipient string      `json:"recipient"`
	Attempt   int         `json:"attempt"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
}
