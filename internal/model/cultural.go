package model

// CulturalContext captures background signals inferred from a client's
// language and phone prefix, used by operators to tailor communication.
type CulturalContext struct {
	LikelyOrigin        string   `json:"likely_origin,omitempty"`
	Region              string   `json:"region,omitempty"`
	CommunicationStyle  string   `json:"communication_style,omitempty"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	CulturalNotes       []string `json:"cultural_notes,omitempty"`
	Confidence          float64  `json:"confidence,omitempty"`
}

// MergeCulturalContext fuses two context inferences into one. When one
// side's confidence exceeds the other's by more than 0.1 it wins wholesale.
// Otherwise fields merge preferring the newer value when present, list
// fields union with deduplication, and confidence takes the maximum.
func MergeCulturalContext(old, newer *CulturalContext) *CulturalContext {
	if old == nil {
		return newer
	}
	if newer == nil {
		return old
	}

	if newer.Confidence > old.Confidence+0.1 {
		return newer
	}
	if old.Confidence > newer.Confidence+0.1 {
		return old
	}

	merged := &CulturalContext{
		LikelyOrigin:       pickNonEmpty(newer.LikelyOrigin, old.LikelyOrigin),
		Region:             pickNonEmpty(newer.Region, old.Region),
		CommunicationStyle: pickNonEmpty(newer.CommunicationStyle, old.CommunicationStyle),
		Confidence:         max(old.Confidence, newer.Confidence),
	}
	merged.DietaryRestrictions = unionStrings(old.DietaryRestrictions, newer.DietaryRestrictions)
	merged.CulturalNotes = unionStrings(old.CulturalNotes, newer.CulturalNotes)
	return merged
}

func pickNonEmpty(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

// unionStrings concatenates both lists preserving first-seen order and
// dropping duplicates. Returns nil when both inputs are empty.
func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
