package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leadvault/chatimport-cli/internal/model"
)

const (
	// heuristicConfidence is the fixed confidence attached to every
	// heuristic result.
	heuristicConfidence = 0.6

	// staleAfter is how long an unanswered operator message may sit before
	// the lead counts as lost.
	staleAfter = 30 * 24 * time.Hour

	// recentWithin is the window in which a counterpart message counts as
	// an active conversation.
	recentWithin = 7 * 24 * time.Hour

	// shortConversation is the message count at or below which a
	// conversation is still just a new lead.
	shortConversation = 2
)

// Keyword lists cover every supported language. Matching is substring,
// case-insensitive, over the whole conversation.
var (
	refusalKeywords = []string{
		"not interested", "no longer interested", "stop writing", "don't write", "unsubscribe",
		"не интересно", "неинтересно", "не актуально", "передумал", "передумала", "не пишите", "отстаньте",
		"no me interesa", "ya no me interesa", "no quiero",
		"pas intéressé", "pas interessé",
		"kein interesse", "nicht interessiert",
		"não tenho interesse", "não estou interessado",
		"לא מעוניין", "לא מעוניינת", "לא רלוונטי",
		"غير مهتم", "لست مهتما",
	}

	paymentKeywords = []string{
		"payment received", "i paid", "i've paid", "booking confirmed", "deposit sent", "paid the deposit",
		"оплатил", "оплатила", "оплачено", "бронь подтверждена", "забронировал", "забронировала", "предоплат",
		"he pagado", "pago realizado", "reserva confirmada",
		"j'ai payé", "réservation confirmée",
		"habe bezahlt", "buchung bestätigt",
		"paguei", "reserva confirmada",
		"שילמתי", "ההזמנה אושרה",
		"دفعت", "تم الحجز",
	}

	onTourKeywords = []string{
		"on the tour", "during the tour", "currently on tour", "we are on the tour",
		"на экскурсии", "на туре", "в туре", "сейчас на экскурсии",
		"en el tour", "durante el tour",
		"pendant le tour",
		"auf der tour",
		"no passeio", "durante o passeio",
		"בסיור", "במהלך הסיור",
		"في الجولة",
	}

	qualificationKeywords = []string{
		"how much", "what's the price", "what is the price", "price?", "available dates", "what date",
		"is the tour available", "availability", "how many people", "per person", "budget",
		"сколько стоит", "сколько будет стоить", "какая цена", "цена", "стоимость", "какие даты", "на какую дату", "сколько человек",
		"cuánto cuesta", "cuanto cuesta", "qué precio", "que precio", "qué fechas", "que fechas",
		"combien ça coûte", "combien ca coute", "quel prix", "quelles dates",
		"wie viel kostet", "was kostet", "welche termine",
		"quanto custa", "qual o preço", "quais datas",
		"כמה עולה", "מה המחיר", "איזה תאריכים",
		"كم السعر", "كم التكلفة",
	}
)

// HeuristicClassifier is the deterministic keyword/recency status detector.
// Now is injectable for tests; it defaults to time.Now.
type HeuristicClassifier struct {
	Now func() time.Time
}

// NewHeuristicClassifier returns a heuristic classifier using wall-clock
// time.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{Now: time.Now}
}

// Classify implements Classifier. The precedence order is total and fixed:
// refusal, payment, on-tour, operator-side staleness, qualification
// questions, recency-based lead freshness, then a message-count default.
func (h *HeuristicClassifier) Classify(_ context.Context, req Request) (*model.StatusDetectionResult, error) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	if len(req.Messages) == 0 {
		return &model.StatusDetectionResult{
			Status:     model.StatusNewLead,
			Confidence: heuristicConfidence,
			Reasoning:  "no messages in conversation",
		}, nil
	}

	transcript := joinLower(req.Messages)

	if kw, ok := matchAny(transcript, refusalKeywords); ok {
		return heuristicResult(model.StatusClosed, fmt.Sprintf("refusal keyword %q found", kw)), nil
	}
	if kw, ok := matchAny(transcript, paymentKeywords); ok {
		return heuristicResult(model.StatusSold, fmt.Sprintf("payment/booking keyword %q found", kw)), nil
	}
	if kw, ok := matchAny(transcript, onTourKeywords); ok {
		return heuristicResult(model.StatusService, fmt.Sprintf("on-tour keyword %q found", kw)), nil
	}

	last := req.Messages[len(req.Messages)-1]
	sinceLast := now().Sub(last.Timestamp)
	lastFromOperator := last.Direction == model.DirectionOutgoing

	// An operator message left unanswered for over 30 days means the lead
	// went cold. A counterpart message never goes stale: they are waiting
	// for our reply, however old the message is.
	if lastFromOperator && sinceLast > staleAfter {
		return heuristicResult(model.StatusClosed,
			fmt.Sprintf("operator message unanswered for %d days", int(sinceLast.Hours()/24))), nil
	}

	if kw, ok := matchAny(transcript, qualificationKeywords); ok {
		return heuristicResult(model.StatusQualified, fmt.Sprintf("qualification keyword %q found", kw)), nil
	}

	if !lastFromOperator && sinceLast < recentWithin {
		if len(req.Messages) <= shortConversation {
			return heuristicResult(model.StatusNewLead, "recent short conversation"), nil
		}
		return heuristicResult(model.StatusWarmed, "recent active conversation"), nil
	}

	if !lastFromOperator {
		return heuristicResult(model.StatusQualified, "counterpart awaiting reply"), nil
	}

	if len(req.Messages) <= shortConversation {
		return heuristicResult(model.StatusNewLead, "short conversation, no signals"), nil
	}
	return heuristicResult(model.StatusQualified, "longer conversation, no signals"), nil
}

func heuristicResult(status model.ClientStatus, reasoning string) *model.StatusDetectionResult {
	return &model.StatusDetectionResult{
		Status:     status,
		Confidence: heuristicConfidence,
		Reasoning:  reasoning,
	}
}

func joinLower(messages []model.ParsedMessage) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(strings.ToLower(m.Content))
		b.WriteByte('\n')
	}
	return b.String()
}

func matchAny(transcript string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(transcript, kw) {
			return kw, true
		}
	}
	return "", false
}
