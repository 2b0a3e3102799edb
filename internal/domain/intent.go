package domain

// Intent enumerates the business implication of an article.
type Intent string

const (
	IntentPositiveFinance  Intent = "positive_finance"
	IntentNegativeFinance  Intent = "negative_finance"
	IntentRegulationPolicy Intent = "regulation_policy"
	IntentMergerMovement   Intent = "merger_movement"
	IntentOperationalEvent Intent = "operational_event"
	IntentMacroCrisis      Intent = "macro_crisis"
	IntentReputationRisk   Intent = "reputation_risk"
	IntentNeutralInfo      Intent = "neutral_info"

	// IntentUnknown marks articles whose classification call failed.
	IntentUnknown Intent = "unknown"
)

// Intents returns the candidate labels offered to the classifier, in canonical order.
func Intents() []Intent {
	return []Intent{
		IntentPositiveFinance,
		IntentNegativeFinance,
		IntentRegulationPolicy,
		IntentMergerMovement,
		IntentOperationalEvent,
		IntentMacroCrisis,
		IntentReputationRisk,
		IntentNeutralInfo,
	}
}

// CandidateLabels returns Intents as plain strings for model requests.
func CandidateLabels() []string {
	intents := Intents()
	labels := make([]string, len(intents))
	for i, intent := range intents {
		labels[i] = string(intent)
	}
	return labels
}

// ParseIntent maps a label to a taxonomy member. The sentinel is accepted too.
func ParseIntent(label string) (Intent, bool) {
	if label == string(IntentUnknown) {
		return IntentUnknown, true
	}
	for _, intent := range Intents() {
		if string(intent) == label {
			return intent, true
		}
	}
	return "", false
}
