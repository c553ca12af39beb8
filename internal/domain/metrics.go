package domain

// PipelineMetrics is the body of GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	TotalRequests         int64   `json:"totalRequests"`
	NotFound              int64   `json:"notFound"`
	EmptyInput            int64   `json:"emptyInput"`
	ReplyFallbacks        int64   `json:"replyFallbacks"`
	ReplyFallbackRate     float64 `json:"replyFallbackRate"`
	GroundingMatchRate    float64 `json:"groundingMatchRate"`
	GroundingFallbackRate float64 `json:"groundingFallbackRate"`
	DroppedCandidates     int64   `json:"droppedCandidates"`
	CacheHitRate          float64 `json:"cacheHitRate"`
	PromptTokens          int64   `json:"promptTokens"`
	CompletionTokens      int64   `json:"completionTokens"`
	Period                string  `json:"period"`
}
