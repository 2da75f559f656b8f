package models

// Category classifies a posted message.
type Category int

const (
	CategoryGossip Category = iota + 1
	CategorySuggestion
	CategoryComplaint
	CategoryAppreciation
)

var categoryLabels = []string{"Gossip", "Suggestion", "Complaint", "Appreciation"}

// CategoryLabels returns the menu labels in selection order.
func CategoryLabels() []string {
	return categoryLabels
}

// CategoryFromChoice maps a 1-based menu selection to a category.
func CategoryFromChoice(n int) (Category, bool) {
	if n < 1 || n > len(categoryLabels) {
		return 0, false
	}
	return Category(n), true
}

func (c Category) String() string {
	if c < 1 || int(c) > len(categoryLabels) {
		return "unknown"
	}
	return categoryLabels[c-1]
}

// Audience selects the recipient set for a post. The office, store and team
// scopes all resolve to the author's own group; only AudienceAllFlexway
// expands to every registered user. The labels exist for user-facing framing,
// not for differentiated routing.
type Audience int

const (
	AudienceMyOffice Audience = iota + 1
	AudienceSpecificStore
	AudienceSpecificTeam
	AudienceAllFlexway
)

var audienceLabels = []string{"My Office", "A Specific Store", "A Specific Team", "All Flexway"}

// AudienceLabels returns the menu labels in selection order.
func AudienceLabels() []string {
	return audienceLabels
}

// AudienceFromChoice maps a 1-based menu selection to an audience scope.
func AudienceFromChoice(n int) (Audience, bool) {
	if n < 1 || n > len(audienceLabels) {
		return 0, false
	}
	return Audience(n), true
}

func (a Audience) String() string {
	if a < 1 || int(a) > len(audienceLabels) {
		return "unknown"
	}
	return audienceLabels[a-1]
}

// Everyone reports whether the scope expands beyond the author's group.
func (a Audience) Everyone() bool {
	return a == AudienceAllFlexway
}
