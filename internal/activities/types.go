package activities

import (
	"paperlens/internal/analysis"
	"paperlens/internal/models"
)

type ResolveInputInput struct {
	Path string `json:"path"`
}

type ResolveInputOutput struct {
	LocalPath string `json:"local_path"`
}

type ExtractTextInput struct {
	Path string `json:"path"`
}

type ExtractTextOutput struct {
	Text string `json:"text"`
}

type SummarizeInput struct {
	UID   string           `json:"uid"`
	DocID string           `json:"doc_id,omitempty"`
	Text  string           `json:"text"`
	Meta  models.PaperMeta `json:"metadata"`
}

type SummarizeOutput struct {
	Summary models.StructuredSummary `json:"summary"`
}

type InsightsInput struct {
	UID     string                   `json:"uid"`
	DocID   string                   `json:"doc_id,omitempty"`
	Summary models.StructuredSummary `json:"summary"`
}

type InsightsOutput struct {
	Insights models.Insights `json:"insights"`
}

type StorePaperInput struct {
	Request  analysis.Request         `json:"request"`
	Summary  models.StructuredSummary `json:"summary"`
	Insights models.Insights          `json:"insights"`
}

type StorePaperOutput struct {
	DocID string `json:"doc_id"`
}

type EnrichInput struct {
	UID      string                   `json:"uid"`
	DocID    string                   `json:"doc_id"`
	Text     string                   `json:"text"`
	Summary  models.StructuredSummary `json:"summary"`
	Insights models.Insights          `json:"insights"`
}

type EnrichOutput struct {
	Chunks   []models.EnrichedChunk `json:"chunks"`
	Written  int                    `json:"written"`
	Failed   int                    `json:"failed"`
	Warnings []string               `json:"warnings,omitempty"`
}

type WriteArtifactInput struct {
	UID    string                 `json:"uid"`
	Key    string                 `json:"key"`
	Result models.AnalysisResult  `json:"result"`
	Chunks []models.EnrichedChunk `json:"chunks,omitempty"`
}

type WriteArtifactOutput struct {
	Dir string `json:"dir"`
}
