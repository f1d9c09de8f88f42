package category

import "testing"

func TestCanonical_ExactMatch(t *testing.T) {
	for _, c := range Order {
		if got := Canonical(string(c)); got != c {
			t.Errorf("Canonical(%q) = %q, want %q", c, got, c)
		}
	}
}

func TestCanonical_Normalization(t *testing.T) {
	cases := []struct {
		in   string
		want Category
	}{
		{"Health Wellness", HealthWellness},
		{"health-wellness", HealthWellness},
		{"health/wellness", HealthWellness},
		{"  Preferences  ", Preferences},
		{"PROFESSIONAL_INFO", ProfessionalInfo},
	}
	for _, tc := range cases {
		if got := Canonical(tc.in); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonical_Synonyms(t *testing.T) {
	cases := []struct {
		in   string
		want Category
	}{
		{"work", ProfessionalInfo},
		{"health", HealthWellness},
		{"hobbies", Preferences},
		{"travel", LocationTravel},
		{"other", Miscellaneous},
	}
	for _, tc := range cases {
		if got := Canonical(tc.in); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonical_UnknownFallsBackToMiscellaneous(t *testing.T) {
	for _, in := range []string{"quantum_vibes", "", "category_42", "???"} {
		if got := Canonical(in); got != Miscellaneous {
			t.Errorf("Canonical(%q) = %q, want miscellaneous", in, got)
		}
	}
}

func TestInfer(t *testing.T) {
	cases := []struct {
		text string
		want Category
	}{
		{"allergic to peanuts", HealthWellness},
		{"works at Acme Corp", ProfessionalInfo},
		{"likes oat milk lattes", Preferences},
		{"met at a conference in Berlin", RelationshipContext},
		{"birthday is March 3rd", ImportantEvents},
		{"wants to run a marathon", Goals},
		{"need to send the intro email", Actionable},
		{"reach me at jane@example.com", PersonalDetails},
		{"", Miscellaneous},
		{"nothing notable here", Miscellaneous},
	}
	for _, tc := range cases {
		if got := Infer(tc.text); got != tc.want {
			t.Errorf("Infer(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
