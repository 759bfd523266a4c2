// Package intent interprets inbound SMS messages: a deterministic shorthand
// match first, then an LLM classifier with a bounded timeout. Classification
// never fails hard; anything unusable degrades to unknown.
package intent

// Kind is the interpreted purpose of an inbound message.
type Kind string

const (
	KindStartTicket    Kind = "start_ticket"
	KindUpdateTicket   Kind = "update_ticket"
	KindCompleteTicket Kind = "complete_ticket"
	KindQueryAddress   Kind = "query_address"
	KindProvideDetails Kind = "provide_details"
	KindUnknown        Kind = "unknown"
)

// Confidence grades how sure the classifier is about its reading.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Classification is the structured reading of one inbound message.
type Classification struct {
	Intent     Kind       `json:"intent"`
	Equipment  string     `json:"equipment,omitempty"`
	BulkSalt   *int       `json:"bulk_salt_qty,omitempty"`
	BagSalt    *int       `json:"bag_salt_qty,omitempty"`
	Calcium    *int       `json:"calcium_chloride_qty,omitempty"`
	Address    string     `json:"address,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Confidence Confidence `json:"confidence"`
}

// HasDetails reports whether any ticket field was extracted.
func (c Classification) HasDetails() bool {
	return c.Equipment != "" || c.BulkSalt != nil || c.BagSalt != nil ||
		c.Calcium != nil || c.Notes != ""
}

// Unknown is the degraded classification used on classifier failure.
func Unknown() Classification {
	return Classification{Intent: KindUnknown, Confidence: ConfidenceLow}
}

// Context is the conversation state handed to the classifier so it can
// disambiguate terse messages.
type Context struct {
	State           string
	PropertyName    string
	HasActiveTicket bool
}

func parseKind(s string) Kind {
	switch Kind(s) {
	case KindStartTicket, KindUpdateTicket, KindCompleteTicket,
		KindQueryAddress, KindProvideDetails:
		return Kind(s)
	}
	return KindUnknown
}

func parseConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium:
		return Confidence(s)
	}
	return ConfidenceLow
}
