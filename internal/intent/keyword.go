package intent

import "strings"

// MatchShorthand resolves the literal command vocabulary without touching
// the classifier. Crews in the field mostly send these.
func MatchShorthand(body string) (Classification, bool) {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "START", "ON MY WAY", "OMW":
		return Classification{Intent: KindStartTicket, Confidence: ConfidenceHigh}, true
	case "DONE", "FINISHED":
		return Classification{Intent: KindCompleteTicket, Confidence: ConfidenceHigh}, true
	case "HELP":
		return Classification{Intent: KindUnknown, Confidence: ConfidenceHigh}, true
	}
	return Classification{}, false
}
