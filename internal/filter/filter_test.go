package filter

import "testing"

func TestAllowsCleanText(t *testing.T) {
	texts := []string{
		"the coffee machine is broken",
		"great teamwork on the launch today",
		"can we get more chairs in the break room?",
	}
	for _, text := range texts {
		if !Allows(text) {
			t.Errorf("expected %q to be allowed", text)
		}
	}
}

func TestRejectsRudeWords(t *testing.T) {
	tests := []struct {
		text string
	}{
		{"this place sucks"},
		{"I hate Mondays"},
		{"what a stupid rule"},
		{"total trash"},
		{"THIS IS USELESS"}, // case-insensitive
		{"dogmatic thinking"}, // substring match: "dog" inside "dogma"
	}
	for _, tt := range tests {
		if Allows(tt.text) {
			t.Errorf("expected %q to be rejected", tt.text)
		}
	}
}

func TestRejectsTargetedInsult(t *testing.T) {
	// No single rude word matches in isolation; the role+insult pattern must.
	if Allows("my manager is lazy") {
		t.Error("expected 'my manager is lazy' to be rejected")
	}
	if Allows("HR has been so lazy about this") {
		t.Error("expected targeted insult to be rejected case-insensitively")
	}
}

func TestInsultWordAloneAllowed(t *testing.T) {
	// "lazy" with no preceding role word passes the pattern.
	if !Allows("feeling lazy this afternoon") {
		t.Error("expected insult word without role word to be allowed")
	}
}

func TestRoleWordOrderMatters(t *testing.T) {
	// Insult before the role word does not match the pattern.
	if !Allows("lazy days in finance") {
		t.Error("expected insult-before-role to be allowed")
	}
}

func TestItPronounFalsePositive(t *testing.T) {
	// "it" is in the role-word set, so ordinary pronoun usage trips the
	// pattern. Preserved behavior, not a bug to fix.
	if Allows("it has been lazy weather lately") {
		t.Error("expected pronoun 'it' followed by insult word to be rejected")
	}
}

func TestDeterministic(t *testing.T) {
	text := "my manager is lazy"
	first := Allows(text)
	second := Allows(text)
	if first != second {
		t.Error("filter verdict changed between calls")
	}
}
