package workflows

import "paperlens/internal/analysis"

type AnalyzePaperInput struct {
	Request             analysis.Request `json:"request"`
	ModelTimeoutSeconds int              `json:"model_timeout_seconds,omitempty"`
	MaxAttempts         int              `json:"max_attempts,omitempty"`
}
