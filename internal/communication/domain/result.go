package domain

import "fmt"

// SendResult aggregates delivery counts for one dispatch.
type SendResult struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// TotalFailure reports whether every recipient failed.
func (r SendResult) TotalFailure() bool {
	return !r.Success && r.Failed == r.Total
}

// Message renders the caller-facing summary of the result.
func (r SendResult) Message() string {
	if r.Success {
		return fmt.Sprintf("Communication sent: %d/%d recipients", r.Sent, r.Total)
	}
	if r.Error != "" {
		return r.Error
	}
	return fmt.Sprintf("Invio fallito: %d/%d destinatari falliti", r.Failed, r.Total)
}

// FailedResult turns a channel error into a result with nothing delivered.
func FailedResult(err error) SendResult {
	return SendResult{Success: false, Errors: []string{err.Error()}, Error: err.Error()}
}

// MergeResults sums counts and concatenates errors. The merged result succeeds
// when any part succeeded.
func MergeResults(results ...SendResult) SendResult {
	var merged SendResult
	var errs []string
	for _, r := range results {
		merged.Success = merged.Success || r.Success
		merged.Sent += r.Sent
		merged.Failed += r.Failed
		merged.Total += r.Total
		errs = append(errs, r.Errors...)
	}
	merged.Errors = errs
	if !merged.Success {
		for _, r := range results {
			if r.Error != "" {
				merged.Error = r.Error
				break
			}
		}
	}
	return merged
}

// ScheduledRun summarises one pass over the due scheduled communications.
type ScheduledRun struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}
