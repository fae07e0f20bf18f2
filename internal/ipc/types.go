package ipc

import (
	"time"

	"platter/internal/queue"
	"platter/internal/workflow"
)

// QueueItemPayload is the wire representation of a queue item.
type QueueItemPayload struct {
	ID              int64     `json:"id"`
	Device          string    `json:"device,omitempty"`
	DiscTitle       string    `json:"disc_title"`
	Status          string    `json:"status"`
	ProgressStage   string    `json:"progress_stage,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	ProgressMessage string    `json:"progress_message,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	NeedsReview     bool      `json:"needs_review,omitempty"`
	ReviewReason    string    `json:"review_reason,omitempty"`
	FinalDir        string    `json:"final_dir,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StageHealthPayload reports the readiness of one workflow stage.
type StageHealthPayload struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatusPayload summarizes workflow state for clients.
type WorkflowStatusPayload struct {
	Running     bool                          `json:"running"`
	LastError   string                        `json:"last_error,omitempty"`
	QueueStats  map[string]int                `json:"queue_stats,omitempty"`
	StageHealth map[string]StageHealthPayload `json:"stage_health,omitempty"`
	LastItem    *QueueItemPayload             `json:"last_item,omitempty"`
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	Running        bool                  `json:"running"`
	DiscMonitoring bool                  `json:"disc_monitoring"`
	QueueDBPath    string                `json:"queue_db_path"`
	LockFilePath   string                `json:"lock_file_path"`
	Workflow       WorkflowStatusPayload `json:"workflow"`
}

// QueueListResponse is returned by the queue list endpoint.
type QueueListResponse struct {
	Items []QueueItemPayload `json:"items"`
}

// RetryRequest selects failed items to retry; empty IDs retries all.
type RetryRequest struct {
	IDs []int64 `json:"ids,omitempty"`
}

// CountResponse reports how many items an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// NotifyResponse is returned by the test notification endpoint.
type NotifyResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// HealthResponse aggregates queue, stage, and database health.
type HealthResponse struct {
	Total      int                    `json:"total"`
	Pending    int                    `json:"pending"`
	Processing int                    `json:"processing"`
	Failed     int                    `json:"failed"`
	Review     int                    `json:"review"`
	Completed  int                    `json:"completed"`
	Stages     []StageHealthPayload   `json:"stages,omitempty"`
	Database   *DatabaseHealthPayload `json:"database,omitempty"`
}

// DatabaseHealthPayload reports queue database diagnostics.
type DatabaseHealthPayload struct {
	Path           string   `json:"path"`
	Exists         bool     `json:"exists"`
	Readable       bool     `json:"readable"`
	SchemaVersion  string   `json:"schema_version,omitempty"`
	MissingColumns []string `json:"missing_columns,omitempty"`
	IntegrityCheck bool     `json:"integrity_check"`
	Error          string   `json:"error,omitempty"`
}

// DetectResponse is returned by the manual disc detection endpoint.
type DetectResponse struct {
	Handled bool   `json:"handled"`
	ItemID  int64  `json:"item_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// ItemPayload converts a queue item into its wire representation. The CLI
// uses it to render direct store reads the same way as daemon responses.
func ItemPayload(item *queue.Item) QueueItemPayload {
	return fromItem(item)
}

func fromItem(item *queue.Item) QueueItemPayload {
	if item == nil {
		return QueueItemPayload{}
	}
	return QueueItemPayload{
		ID:              item.ID,
		Device:          item.Device,
		DiscTitle:       item.DiscTitle,
		Status:          string(item.Status),
		ProgressStage:   item.ProgressStage,
		ProgressPercent: item.ProgressPercent,
		ProgressMessage: item.ProgressMessage,
		ErrorMessage:    item.ErrorMessage,
		NeedsReview:     item.NeedsReview,
		ReviewReason:    item.ReviewReason,
		FinalDir:        item.FinalDir,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func fromStatusSummary(summary workflow.StatusSummary) WorkflowStatusPayload {
	payload := WorkflowStatusPayload{
		Running:   summary.Running,
		LastError: summary.LastError,
	}
	if len(summary.QueueStats) > 0 {
		payload.QueueStats = make(map[string]int, len(summary.QueueStats))
		for status, count := range summary.QueueStats {
			payload.QueueStats[string(status)] = count
		}
	}
	if len(summary.StageHealth) > 0 {
		payload.StageHealth = make(map[string]StageHealthPayload, len(summary.StageHealth))
		for name, health := range summary.StageHealth {
			payload.StageHealth[name] = StageHealthPayload{
				Name:   health.Name,
				Ready:  health.Ready,
				Detail: health.Detail,
			}
		}
	}
	if summary.LastItem != nil {
		converted := fromItem(summary.LastItem)
		payload.LastItem = &converted
	}
	return payload
}
