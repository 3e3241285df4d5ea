// Package classify detects a client's sales-funnel status from their chat
// history. Two implementations exist: a deterministic keyword/recency
// heuristic and an LLM-backed classifier; a fallback decorator composes
// them, and Detector selects the strategy per call.
package classify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leadvault/chatimport-cli/internal/model"
)

// Request carries everything a classifier needs for one conversation.
type Request struct {
	ContactID        string
	Messages         []model.ParsedMessage
	FirstMessageDate time.Time
	LastMessageDate  time.Time
	Language         string
}

// Classifier detects the funnel status of a single conversation.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*model.StatusDetectionResult, error)
}

// FallbackClassifier tries Primary and falls back to Fallback on any error,
// annotating the result so operators can see the degraded path was taken.
type FallbackClassifier struct {
	Primary  Classifier
	Fallback Classifier
}

// Classify implements Classifier.
func (f *FallbackClassifier) Classify(ctx context.Context, req Request) (*model.StatusDetectionResult, error) {
	result, primaryErr := f.Primary.Classify(ctx, req)
	if primaryErr == nil {
		return result, nil
	}
	if f.Fallback == nil {
		return nil, primaryErr
	}

	zap.L().Warn("primary classifier failed, falling back",
		zap.String("contact_id", req.ContactID),
		zap.Error(primaryErr),
	)

	result, err := f.Fallback.Classify(ctx, req)
	if err != nil {
		return nil, err
	}
	result.Reasoning = fmt.Sprintf("%s (fallback after primary classifier error: %v)", result.Reasoning, primaryErr)
	return result, nil
}

// Detector is the strategy front for status detection. It holds an optional
// LLM classifier and resolves the effective mode per call: an explicit
// useLLM argument wins, otherwise the configured default applies.
type Detector struct {
	heuristic       Classifier
	llm             Classifier
	preferLLM       bool
	fallbackOnError bool
}

// NewDetector builds a Detector. llm may be nil, in which case every call
// uses the heuristic.
func NewDetector(heuristic, llm Classifier, preferLLM, fallbackOnError bool) *Detector {
	return &Detector{
		heuristic:       heuristic,
		llm:             llm,
		preferLLM:       preferLLM,
		fallbackOnError: fallbackOnError,
	}
}

// DetectStatus classifies one conversation. useLLM overrides the configured
// default when non-nil.
func (d *Detector) DetectStatus(ctx context.Context, req Request, useLLM *bool) (*model.StatusDetectionResult, error) {
	mode := d.preferLLM
	if useLLM != nil {
		mode = *useLLM
	}

	if mode && d.llm != nil {
		if d.fallbackOnError {
			fb := &FallbackClassifier{Primary: d.llm, Fallback: d.heuristic}
			return fb.Classify(ctx, req)
		}
		return d.llm.Classify(ctx, req)
	}

	return d.heuristic.Classify(ctx, req)
}
