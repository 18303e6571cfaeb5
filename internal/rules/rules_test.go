package rules

import "testing"

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		labelText string
		hasLabel  bool
		set       Set
		want      Verdict
	}{
		{
			name:      "error condition matches gift token",
			labelText: "SIM TECNO подарок",
			hasLabel:  true,
			set:       Set{ErrorConditions: []string{"подарок"}},
			want:      VerdictNOK,
		},
		{
			name:      "no label matches no-widget phrase",
			labelText: "",
			hasLabel:  false,
			set:       Set{OkConditions: []string{"нет виджета"}},
			want:      VerdictOK,
		},
		{
			name:      "no label alt phrase",
			labelText: "",
			hasLabel:  false,
			set:       Set{OkConditions: []string{"без виджета"}},
			want:      VerdictOK,
		},
		{
			name:      "error list takes precedence over ok list",
			labelText: "SIM TECNO подарок",
			hasLabel:  true,
			set: Set{
				ErrorConditions: []string{"подарок"},
				OkConditions:    []string{"sim tecno"},
			},
			want: VerdictNOK,
		},
		{
			name:      "glyph condition is strict in the error list",
			labelText: "SIM TECNO подарок карта",
			hasLabel:  true,
			set:       Set{ErrorConditions: []string{"SIM TECNO 🎁"}},
			want:      VerdictUnknown,
		},
		{
			name:      "glyph condition matches label carrying the glyph",
			labelText: "SIM TECNO 🎁",
			hasLabel:  true,
			set:       Set{ErrorConditions: []string{"SIM TECNO 🎁"}},
			want:      VerdictNOK,
		},
		{
			name:      "gift token required even when other tokens match",
			labelText: "SIM TECNO карта",
			hasLabel:  true,
			set:       Set{ErrorConditions: []string{"sim tecno подарок"}},
			want:      VerdictUnknown,
		},
		{
			name:      "icon fallback accepts implicit sim promo",
			labelText: "SIM карта в комплекте",
			hasLabel:  true,
			set:       Set{OkConditions: []string{"SIM 🎁"}},
			want:      VerdictOK,
		},
		{
			name:      "icon fallback rejects label spelling the gift word",
			labelText: "SIM TECNO подарок",
			hasLabel:  true,
			set:       Set{OkConditions: []string{"акция 🎁"}},
			want:      VerdictUnknown,
		},
		{
			name:      "no match in either list",
			labelText: "скидка 10 процентов",
			hasLabel:  true,
			set: Set{
				ErrorConditions: []string{"подарок"},
				OkConditions:    []string{"sim tecno"},
			},
			want: VerdictUnknown,
		},
		{
			name:      "single-character tokens are ignored",
			labelText: "подарок",
			hasLabel:  true,
			set:       Set{ErrorConditions: []string{"в подарок"}},
			want:      VerdictNOK,
		},
		{
			name:      "empty label never matches token conditions",
			labelText: "",
			hasLabel:  false,
			set:       Set{ErrorConditions: []string{"подарок"}},
			want:      VerdictUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, trace := Evaluate(tt.labelText, tt.hasLabel, tt.set)
			if got != tt.want {
				t.Errorf("Evaluate() verdict = %q (reason %q), want %q", got, reason, tt.want)
			}
			if trace.LabelText != tt.labelText {
				t.Errorf("trace.LabelText = %q, want %q", trace.LabelText, tt.labelText)
			}
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	set := Set{
		ErrorConditions: []string{"подарок", "SIM TECNO 🎁"},
		OkConditions:    []string{"нет виджета", "sim карта"},
	}
	firstVerdict, firstReason, _ := Evaluate("SIM TECNO подарок", true, set)
	for i := 0; i < 10; i++ {
		v, r, _ := Evaluate("SIM TECNO подарок", true, set)
		if v != firstVerdict || r != firstReason {
			t.Fatalf("evaluation not deterministic: got (%q, %q), want (%q, %q)",
				v, r, firstVerdict, firstReason)
		}
	}
}

func TestEvaluateTrace(t *testing.T) {
	set := Set{
		ErrorConditions: []string{" подарок ", ""},
		OkConditions:    []string{"нет виджета"},
	}
	_, _, trace := Evaluate("SIM TECNO подарок", true, set)
	if trace.MatchedError != "подарок" {
		t.Errorf("trace.MatchedError = %q, want %q", trace.MatchedError, "подарок")
	}
	if len(trace.ErrorConditions) != 1 {
		t.Errorf("blank conditions should be dropped, got %v", trace.ErrorConditions)
	}
	if trace.LabelNorm != "sim tecno подарок" {
		t.Errorf("trace.LabelNorm = %q", trace.LabelNorm)
	}
}

func TestSetEmpty(t *testing.T) {
	if !(Set{}).Empty() {
		t.Error("zero set should be empty")
	}
	if !(Set{ErrorConditions: []string{"  "}}).Empty() {
		t.Error("blank-only set should be empty")
	}
	if (Set{OkConditions: []string{"нет виджета"}}).Empty() {
		t.Error("set with a condition should not be empty")
	}
}
