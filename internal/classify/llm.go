package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/leadvault/chatimport-cli/internal/model"
	"github.com/leadvault/chatimport-cli/internal/resilience"
	"github.com/leadvault/chatimport-cli/pkg/anthropic"
)

const llmSystemPrompt = `You analyze a sales conversation between a tour business operator and a prospective client and decide the client's sales-funnel status.

Valid statuses: NEW_LEAD, QUALIFIED, WARMED, PROPOSAL_SENT, NEGOTIATION, SOLD, SERVICE, CLOSED.

Respond with ONLY a JSON object, no prose:
{"status": "<one of the statuses>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>", "cultural_context": {"likely_origin": "", "region": "", "communication_style": "", "dietary_restrictions": [], "cultural_notes": [], "confidence": <0.0-1.0>}}

The cultural_context object is optional; include it only when the conversation supports it.`

const truncationMarker = "[earlier messages truncated]"

// LLMConfig bounds the prompt and tunes the model call.
type LLMConfig struct {
	Model         string
	MaxTokens     int64
	Temperature   float64
	MaxPromptLen  int // max user prompt length in runes
	MaxMessages   int // max transcript messages, newest kept
	MaxMessageLen int // max runes per transcript line
	Retry         resilience.RetryConfig
}

// DefaultLLMConfig returns the default prompt caps.
func DefaultLLMConfig(modelID string) LLMConfig {
	return LLMConfig{
		Model:         modelID,
		MaxTokens:     1024,
		Temperature:   0.2,
		MaxPromptLen:  12000,
		MaxMessages:   100,
		MaxMessageLen: 500,
		Retry:         resilience.DefaultRetryConfig(),
	}
}

// LLMClassifier classifies conversations with an LLM. The limiter caps
// call rate per organization and the breaker short-circuits a failing API
// so runs degrade to the heuristic quickly instead of timing out per
// contact.
type LLMClassifier struct {
	client  anthropic.Client
	cfg     LLMConfig
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewLLMClassifier builds an LLM classifier. limiter and breaker may be
// nil. Unset config fields are filled in individually from
// DefaultLLMConfig; fields the caller did set are kept.
func NewLLMClassifier(client anthropic.Client, cfg LLMConfig, limiter *rate.Limiter, breaker *resilience.CircuitBreaker) *LLMClassifier {
	def := DefaultLLMConfig(cfg.Model)
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxPromptLen <= 0 {
		cfg.MaxPromptLen = def.MaxPromptLen
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = def.MaxMessages
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = def.MaxMessageLen
	}
	return &LLMClassifier{client: client, cfg: cfg, limiter: limiter, breaker: breaker}
}

// Classify implements Classifier.
func (l *LLMClassifier) Classify(ctx context.Context, req Request) (*model.StatusDetectionResult, error) {
	if l.breaker != nil && !l.breaker.Allow() {
		return nil, resilience.ErrCircuitOpen
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "classify: llm rate limit wait")
		}
	}

	prompt := l.buildPrompt(req)

	retryCfg := l.cfg.Retry
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "classify_status")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		temp := l.cfg.Temperature
		return l.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       l.cfg.Model,
			MaxTokens:   l.cfg.MaxTokens,
			System:      []anthropic.SystemBlock{{Text: llmSystemPrompt}},
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
	})
	if err != nil {
		if l.breaker != nil {
			l.breaker.RecordFailure()
		}
		return nil, eris.Wrap(err, "classify: llm call")
	}
	if l.breaker != nil {
		l.breaker.RecordSuccess()
	}
	resp.Usage.LogUsage(l.cfg.Model, "classify_status")

	return parseLLMResponse(resp.Text()), nil
}

// buildPrompt renders the conversation into a size-capped user prompt,
// truncating the oldest content first and marking truncation explicitly.
func (l *LLMClassifier) buildPrompt(req Request) string {
	msgs := req.Messages
	truncated := false
	if l.cfg.MaxMessages > 0 && len(msgs) > l.cfg.MaxMessages {
		msgs = msgs[len(msgs)-l.cfg.MaxMessages:]
		truncated = true
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		role := "client"
		if m.Direction == model.DirectionOutgoing {
			role = "operator"
		}
		content := m.Content
		if l.cfg.MaxMessageLen > 0 {
			if r := []rune(content); len(r) > l.cfg.MaxMessageLen {
				content = string(r[:l.cfg.MaxMessageLen]) + "…"
			}
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.Timestamp.Format("2006-01-02 15:04"), role, content))
	}

	header := fmt.Sprintf("Conversation language: %s\nFirst message: %s\nLast message: %s\nTranscript:\n",
		req.Language,
		req.FirstMessageDate.Format("2006-01-02"),
		req.LastMessageDate.Format("2006-01-02"),
	)

	// Enforce the total prompt cap by dropping oldest lines.
	if l.cfg.MaxPromptLen > 0 {
		budget := l.cfg.MaxPromptLen - len([]rune(header)) - len([]rune(truncationMarker)) - 1
		total := 0
		keepFrom := len(lines)
		for i := len(lines) - 1; i >= 0; i-- {
			lineLen := len([]rune(lines[i])) + 1
			if total+lineLen > budget {
				break
			}
			total += lineLen
			keepFrom = i
		}
		if keepFrom > 0 {
			lines = lines[keepFrom:]
			truncated = true
		}
	}

	var b strings.Builder
	b.WriteString(header)
	if truncated {
		b.WriteString(truncationMarker)
		b.WriteByte('\n')
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// llmPayload is the JSON contract the model is prompted to return.
type llmPayload struct {
	Status          string      `json:"status"`
	Confidence      float64     `json:"confidence"`
	Reasoning       string      `json:"reasoning"`
	CulturalContext *llmContext `json:"cultural_context"`
}

type llmContext struct {
	LikelyOrigin        string   `json:"likely_origin"`
	Region              string   `json:"region"`
	CommunicationStyle  string   `json:"communication_style"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	CulturalNotes       []string `json:"cultural_notes"`
	Confidence          float64  `json:"confidence"`
}

// parseLLMResponse parses the model's structured output. When the JSON
// contract is violated it degrades to keyword sniffing over the raw text
// with low confidence, defaulting to NEW_LEAD.
func parseLLMResponse(text string) *model.StatusDetectionResult {
	payload, err := decodePayload(text)
	if err != nil {
		return sniffStatus(text)
	}

	status, err := model.ParseClientStatus(payload.Status)
	if err != nil {
		return sniffStatus(text)
	}

	result := &model.StatusDetectionResult{
		Status:     status,
		Confidence: clamp01(payload.Confidence),
		Reasoning:  payload.Reasoning,
	}
	if cc := payload.CulturalContext; cc != nil {
		result.CulturalContext = &model.CulturalContext{
			LikelyOrigin:        cc.LikelyOrigin,
			Region:              cc.Region,
			CommunicationStyle:  cc.CommunicationStyle,
			DietaryRestrictions: cc.DietaryRestrictions,
			CulturalNotes:       cc.CulturalNotes,
			Confidence:          clamp01(cc.Confidence),
		}
	}
	return result
}

// decodePayload extracts the outermost JSON object from text, tolerating
// code fences and surrounding prose.
func decodePayload(text string) (*llmPayload, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, eris.New("classify: no JSON object in llm response")
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, eris.Wrap(err, "classify: decode llm response")
	}
	return &payload, nil
}

// sniffOrder: later funnel stages are checked first.
var sniffOrder = []model.ClientStatus{
	model.StatusClosed,
	model.StatusSold,
	model.StatusService,
	model.StatusNegotiation,
	model.StatusProposalSent,
	model.StatusQualified,
	model.StatusWarmed,
	model.StatusNewLead,
}

// sniffPatterns match status names as whole words only, so prose like
// "disclosed" or "unsold" cannot hit closed/sold. Underscored names also
// match their spaced form.
var sniffPatterns = func() map[model.ClientStatus]*regexp.Regexp {
	patterns := make(map[model.ClientStatus]*regexp.Regexp, len(sniffOrder))
	for _, status := range sniffOrder {
		word := strings.ReplaceAll(string(status), "_", "[_ ]")
		patterns[status] = regexp.MustCompile(`\b` + word + `\b`)
	}
	return patterns
}()

func sniffStatus(text string) *model.StatusDetectionResult {
	lower := strings.ToLower(text)
	for _, status := range sniffOrder {
		if sniffPatterns[status].MatchString(lower) {
			return &model.StatusDetectionResult{
				Status:     status,
				Confidence: 0.4,
				Reasoning:  "llm response was unstructured; matched status keyword in raw text",
			}
		}
	}
	return &model.StatusDetectionResult{
		Status:     model.StatusNewLead,
		Confidence: 0.3,
		Reasoning:  "llm response was unstructured and no status keyword matched",
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
