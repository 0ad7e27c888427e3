package dto

// SuccessResponse acknowledges a mutation that has no body of its own
type SuccessResponse struct {
	Message string `json:"message"`
}

// CronJobStatusCompleted is reported when a sweep ran to the end
const CronJobStatusCompleted = "completed"

// CronJobResponse reports how many records a sweep moved to expired
type CronJobResponse struct {
	Status  string `json:"status"`
	Expired int    `json:"expired"`
}
