package models

import (
	"encoding/json"
	"strings"
)

// PaperMeta is caller-supplied bibliographic metadata. It always wins over
// anything a model writes into a summary body.
type PaperMeta struct {
	Title     string `json:"title,omitempty"`
	Authors   string `json:"authors,omitempty"`
	Published string `json:"published,omitempty"`
	PDFURL    string `json:"pdf_url,omitempty"`
	Source    string `json:"source,omitempty"`
}

type StructuredSummary struct {
	Abstract    string    `json:"abstract"`
	Objectives  []string  `json:"objectives"`
	Methodology string    `json:"methodology"`
	Findings    string    `json:"findings"`
	Limitations string    `json:"limitations"`
	KeyPoints   []string  `json:"key_points"`
	Meta        PaperMeta `json:"metadata"`
	RawOutput   string    `json:"raw_output,omitempty"`
}

// Text renders the summary body used for insight prompts and embeddings.
func (s StructuredSummary) Text() string {
	var b strings.Builder
	if s.Meta.Title != "" {
		b.WriteString("Title: " + s.Meta.Title + "\n")
	}
	writeField(&b, "Abstract", s.Abstract)
	writeList(&b, "Objectives", s.Objectives)
	writeField(&b, "Methodology", s.Methodology)
	writeField(&b, "Findings", s.Findings)
	writeField(&b, "Limitations", s.Limitations)
	writeList(&b, "Key points", s.KeyPoints)
	return strings.TrimSpace(b.String())
}

type StructuredInsights struct {
	Findings     []string `json:"findings"`
	Methods      []string `json:"methods"`
	Datasets     []string `json:"datasets"`
	Limitations  []string `json:"limitations"`
	Implications []string `json:"implications"`
	Citations    []string `json:"citations"`
}

// Insights is either a structured insight set or the raw model text that
// could not be parsed into one.
type Insights struct {
	Structured *StructuredInsights
	Raw        string
}

func StructuredOf(s StructuredInsights) Insights {
	return Insights{Structured: &s}
}

func RawInsights(text string) Insights {
	return Insights{Raw: text}
}

func (in Insights) IsRaw() bool {
	return in.Structured == nil
}

// Normalize returns a structured view. Raw insights yield empty lists.
func (in Insights) Normalize() StructuredInsights {
	if in.Structured == nil {
		return StructuredInsights{}
	}
	return *in.Structured
}

func (in Insights) Text() string {
	if in.Structured == nil {
		return strings.TrimSpace(in.Raw)
	}
	var b strings.Builder
	s := in.Structured
	writeList(&b, "Findings", s.Findings)
	writeList(&b, "Methods", s.Methods)
	writeList(&b, "Datasets", s.Datasets)
	writeList(&b, "Limitations", s.Limitations)
	writeList(&b, "Implications", s.Implications)
	writeList(&b, "Citations", s.Citations)
	return strings.TrimSpace(b.String())
}

func (in Insights) MarshalJSON() ([]byte, error) {
	if in.Structured == nil {
		return json.Marshal(map[string]string{"raw_output": in.Raw})
	}
	return json.Marshal(in.Structured)
}

func (in *Insights) UnmarshalJSON(b []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if raw, ok := probe["raw_output"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		*in = RawInsights(text)
		return nil
	}
	var s StructuredInsights
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*in = StructuredOf(s)
	return nil
}

type ChunkType string

const (
	ChunkSectionSummary   ChunkType = "section_summary"
	ChunkParagraphRewrite ChunkType = "paragraph_rewrite"
	ChunkFinding          ChunkType = "finding"
	ChunkMethod           ChunkType = "method"
	ChunkDataset          ChunkType = "dataset"
	ChunkLimitation       ChunkType = "limitation"
	ChunkImplication      ChunkType = "implication"
	ChunkCitation         ChunkType = "citation"
	ChunkConcept          ChunkType = "concept"
)

type EnrichedChunk struct {
	ID             string    `json:"id"`
	DocID          string    `json:"doc_id"`
	Type           ChunkType `json:"chunk_type"`
	Content        string    `json:"content"`
	Title          string    `json:"title,omitempty"`
	Section        string    `json:"section,omitempty"`
	ParagraphIndex *int      `json:"paragraph_index,omitempty"`
	Concept        string    `json:"concept,omitempty"`
	Score          float64   `json:"score,omitempty"`
}

type Paper struct {
	DocID    string            `json:"doc_id"`
	Title    string            `json:"title"`
	Meta     PaperMeta         `json:"metadata"`
	Summary  StructuredSummary `json:"summary"`
	Insights Insights          `json:"insights"`
	Score    float64           `json:"score,omitempty"`
}

type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobNotFound   JobStatus = "not_found"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type AnalysisResult struct {
	DocID      string            `json:"doc_id"`
	Summary    StructuredSummary `json:"summary"`
	Insights   Insights          `json:"insights"`
	ChunkCount int               `json:"chunk_count"`
	Warnings   []string          `json:"warnings,omitempty"`
}

type AnalysisJob struct {
	JobID    string          `json:"job_id"`
	Status   JobStatus       `json:"status"`
	Progress int             `json:"progress"`
	Message  string          `json:"message,omitempty"`
	Result   *AnalysisResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type Source struct {
	Title     string    `json:"title"`
	DocID     string    `json:"doc_id"`
	ChunkType ChunkType `json:"chunk_type"`
	Section   string    `json:"section,omitempty"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

func writeField(b *strings.Builder, label, v string) {
	v = strings.TrimSpace(v)
	if v == "" || v == "N/A" {
		return
	}
	b.WriteString(label + ": " + v + "\n")
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(label + ":\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
}
