package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ClientStatus is the sales-funnel stage of a client.
type ClientStatus string

// Funnel stages, roughly ordered from first contact to closed.
const (
	StatusNewLead      ClientStatus = "new_lead"
	StatusQualified    ClientStatus = "qualified"
	StatusWarmed       ClientStatus = "warmed"
	StatusProposalSent ClientStatus = "proposal_sent"
	StatusNegotiation  ClientStatus = "negotiation"
	StatusSold         ClientStatus = "sold"
	StatusService      ClientStatus = "service"
	StatusClosed       ClientStatus = "closed"
)

// AllStatuses lists every valid funnel stage.
var AllStatuses = []ClientStatus{
	StatusNewLead,
	StatusQualified,
	StatusWarmed,
	StatusProposalSent,
	StatusNegotiation,
	StatusSold,
	StatusService,
	StatusClosed,
}

// ParseClientStatus converts a raw status string (either wire form like
// "NEW_LEAD" or stored form like "new_lead") into a ClientStatus.
func ParseClientStatus(raw string) (ClientStatus, error) {
	s := ClientStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, valid := range AllStatuses {
		if s == valid {
			return valid, nil
		}
	}
	return "", eris.Errorf("model: unknown client status %q", raw)
}

// StatusDetectionResult is the outcome of classifying one conversation.
type StatusDetectionResult struct {
	Status          ClientStatus     `json:"status"`
	Confidence      float64          `json:"confidence"`
	Reasoning       string           `json:"reasoning,omitempty"`
	CulturalContext *CulturalContext `json:"cultural_context,omitempty"`
}
