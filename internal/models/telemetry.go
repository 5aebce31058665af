package models

import "strconv"

// TelemetryRecord is one completed relay request, destined for the CSV log.
// Field order is part of the external contract: downstream analysis tools
// depend on the 16-column layout returned by CSVHeader and Row.
type TelemetryRecord struct {
	Timestamp          string  `json:"timestamp"`
	ModelName          string  `json:"model_name"`
	Prompt             string  `json:"prompt"`
	Response           string  `json:"response"`
	EvalCount          int64   `json:"eval_count"`
	EvalDuration       int64   `json:"eval_duration"`
	LoadDuration       int64   `json:"load_duration"`
	PromptEvalDuration int64   `json:"prompt_eval_duration"`
	TotalDuration      int64   `json:"total_duration"`
	TokensPerSecond    float64 `json:"tokens_per_second"`
	AvgCPUUsage        float64 `json:"avg_cpu_usage_during"`
	MemoryBefore       uint64  `json:"memory_usage_before"`
	MemoryAfter        uint64  `json:"memory_usage_after"`
	ModelMemory        uint64  `json:"memory_allocated_for_model"`
	NetworkLatencyNs   float64 `json:"network_latency"`
	TotalResponseNs    float64 `json:"total_response_time"`
}

// CSVHeader returns the fixed 16-column header row, written once per file.
func CSVHeader() []string {
	return []string{
		"timestamp",
		"model_name",
		"prompt",
		"response",
		"eval_count",
		"eval_duration",
		"load_duration",
		"prompt_eval_duration",
		"total_duration",
		"tokens_per_second",
		"avg_cpu_usage_during",
		"memory_usage_before",
		"memory_usage_after",
		"memory_allocated_for_model",
		"network_latency",
		"total_response_time",
	}
}

// Row renders the record as a CSV row in header order. Float columns keep
// two decimals to match the log's rounding contract.
func (r *TelemetryRecord) Row() []string {
	return []string{
		r.Timestamp,
		r.ModelName,
		r.Prompt,
		r.Response,
		strconv.FormatInt(r.EvalCount, 10),
		strconv.FormatInt(r.EvalDuration, 10),
		strconv.FormatInt(r.LoadDuration, 10),
		strconv.FormatInt(r.PromptEvalDuration, 10),
		strconv.FormatInt(r.TotalDuration, 10),
		strconv.FormatFloat(r.TokensPerSecond, 'f', 2, 64),
		strconv.FormatFloat(r.AvgCPUUsage, 'f', 2, 64),
		strconv.FormatUint(r.MemoryBefore, 10),
		strconv.FormatUint(r.MemoryAfter, 10),
		strconv.FormatUint(r.ModelMemory, 10),
		strconv.FormatFloat(r.NetworkLatencyNs, 'f', 2, 64),
		strconv.FormatFloat(r.TotalResponseNs, 'f', 2, 64),
	}
}
