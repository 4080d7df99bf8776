package providers

import (
	"context"
	"time"
)

// CallRecord describes one completed model call.
type CallRecord struct {
	Operation string
	UID       string
	DocID     string
	JobID     string
	Provider  ProviderInfo
	Status    string
	ErrorType ErrorType
	Latency   time.Duration
}

type CallRecorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

type scopeKey struct{}

// Scope tags model calls made on behalf of a user and paper.
type Scope struct {
	UID   string
	DocID string
	JobID string
}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func ScopeFrom(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// AuditedLLM records every Generate call. Recording failures never affect
// the call result.
type AuditedLLM struct {
	inner    LLMProvider
	recorder CallRecorder
	onError  func(error)
}

func NewAuditedLLM(inner LLMProvider, recorder CallRecorder, onError func(error)) *AuditedLLM {
	return &AuditedLLM{inner: inner, recorder: recorder, onError: onError}
}

func (a *AuditedLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	start := time.Now()
	resp, info, err := a.inner.Generate(ctx, req)
	scope := ScopeFrom(ctx)
	rec := CallRecord{
		Operation: req.Operation,
		UID:       scope.UID,
		DocID:     scope.DocID,
		JobID:     scope.JobID,
		Provider:  info,
		Status:    "ok",
		Latency:   time.Since(start),
	}
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = ClassifyError(err)
	}
	if recErr := a.recorder.RecordCall(context.WithoutCancel(ctx), rec); recErr != nil && a.onError != nil {
		a.onError(recErr)
	}
	return resp, info, err
}
