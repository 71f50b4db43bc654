// Package mes exposes typed access to the manufacturing resource
// endpoints through the resilient data layer: reads go through the
// query cache coordinator, writes through the mutation executor, and
// each mutation declares the query keys it invalidates.
package mes

import "time"

// LaborEntry is one worker's labor booking on an operation.
type LaborEntry struct {
	ID          int64      `json:"id"`
	OperationID int64      `json:"operation_id"`
	WorkerName  string     `json:"worker_name"`
	Status      string     `json:"status"`
	ClockedInAt *time.Time `json:"clocked_in_at,omitempty"`
	OnBreak     bool       `json:"on_break"`
}

// MaterialLine is one material requirement line of an operation.
type MaterialLine struct {
	ID          int64   `json:"id"`
	OperationID int64   `json:"operation_id"`
	PartNumber  string  `json:"part_number"`
	Description string  `json:"description"`
	Required    float64 `json:"required"`
	Consumed    float64 `json:"consumed"`
	Unit        string  `json:"unit"`
}

// ConsumeRequest reports material consumption against an operation.
type ConsumeRequest struct {
	OperationID int64   `json:"operation_id"`
	LineID      int64   `json:"line_id"`
	Quantity    float64 `json:"quantity"`
	LotNumber   string  `json:"lot_number,omitempty"`
}

// NCR is a non-conformance report.
type NCR struct {
	ID          int64     `json:"id"`
	OperationID int64     `json:"operation_id"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NCRCreate is the payload for opening a non-conformance report.
type NCRCreate struct {
	OperationID int64  `json:"operation_id"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// QualityCheck records the result of an in-process quality check.
type QualityCheck struct {
	OperationID    int64   `json:"operation_id"`
	Characteristic string  `json:"characteristic"`
	Measured       float64 `json:"measured"`
	Passed         bool    `json:"passed"`
}
