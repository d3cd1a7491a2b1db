package domain

import "time"

// RequestLog records a single handled HTTP request.
type RequestLog struct {
	Seq              uint64    `json:"-"`
	Timestamp        time.Time `json:"timestamp"`
	Method           string    `json:"method"`
	Path             string    `json:"path"`
	ClientIP         string    `json:"client_ip"`
	UserAgent        string    `json:"user_agent"`
	StatusCode       int       `json:"status_code"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
}
