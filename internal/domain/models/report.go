package models

import "time"

// ReportStatus is the lifecycle state of an asynchronous report job.
type ReportStatus string

const (
	ReportQueued  ReportStatus = "queued"
	ReportRunning ReportStatus = "running"
	ReportDone    ReportStatus = "done"
	ReportFailed  ReportStatus = "failed"
)

// ReportJob tracks an analysis report generated in the background.
type ReportJob struct {
	ID        string       `json:"id"`
	StockName string       `json:"stock_name"`
	Status    ReportStatus `json:"status"`
	Content   string       `json:"content,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
