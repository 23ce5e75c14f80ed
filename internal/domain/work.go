package domain

// WorkItem is a single transferable unit. Immutable once built; the
// orchestrator only reads it.
type WorkItem struct {
	ID              string   `json:"id"`
	PrimaryURL      string   `json:"primary_url"`
	FallbackURLs    []string `json:"fallback_urls"`
	DestinationPath string   `json:"destination_path"`
}

// TransferOutcome is produced exactly once per work item per pass.
type TransferOutcome struct {
	ID        string `json:"id"`
	Succeeded bool   `json:"succeeded"`
	Detail    string `json:"detail"`
}

// BatchResult summarizes one full run over a batch, including all retry
// waves. Failures is a point-in-time copy of the failure ledger.
type BatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	FailedIDs []string          `json:"failed_ids"`
	Failures  map[string]string `json:"failures"`
}
