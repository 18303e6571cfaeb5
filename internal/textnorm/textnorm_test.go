package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases and collapses whitespace",
			in:   "SIM  TECNO\t подарок",
			want: "sim tecno подарок",
		},
		{
			name: "folds punctuation into spaces",
			in:   "SIM-карта, в подарок!",
			want: "sim карта в подарок",
		},
		{
			name: "repairs ё",
			in:   "Подарёнок",
			want: "подаренок",
		},
		{
			name: "gift glyph becomes the gift word",
			in:   "SIM TECNO 🎁",
			want: "sim tecno подарок",
		},
		{
			name: "keeps digits and underscores",
			in:   "promo_42 TECNO",
			want: "promo_42 tecno",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "only punctuation",
			in:   "—–!!!…",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokens(t *testing.T) {
	got := Tokens(Normalize("SIM TECNO, подарок"))
	want := []string{"sim", "tecno", "подарок"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens = %v, want %v", got, want)
	}
}

func TestTokenSet(t *testing.T) {
	set := TokenSet("sim tecno sim")
	if len(set) != 2 {
		t.Errorf("TokenSet size = %d, want 2", len(set))
	}
	if _, ok := set["tecno"]; !ok {
		t.Errorf("TokenSet missing token %q", "tecno")
	}
}
