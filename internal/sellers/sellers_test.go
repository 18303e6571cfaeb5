package sellers

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeAliases(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seller_aliases.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write aliases: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeAliases(t, `{
		"OZON": ["Озон", "OZON Express"],
		"Tecno Store": "TECNO Official",
		"": ["ignored"],
		"Empty": []
	}`)

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := table["ozon"]; !reflect.DeepEqual(got, []string{"озон", "ozon express"}) {
		t.Errorf("ozon aliases = %v", got)
	}
	if got := table["tecno store"]; !reflect.DeepEqual(got, []string{"tecno official"}) {
		t.Errorf("scalar alias = %v", got)
	}
	if _, ok := table[""]; ok {
		t.Error("empty key should be dropped")
	}
	if _, ok := table["empty"]; ok {
		t.Error("entry without aliases should be dropped")
	}
}

func TestLoadMissingFile(t *testing.T) {
	table, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if len(table) != 0 {
		t.Errorf("missing file should yield empty table, got %v", table)
	}
}

func TestExpand(t *testing.T) {
	table := Table{"ozon": {"озон", "ozon express"}}

	got := table.Expand([]string{"ozon", "tecno"})
	want := []string{"ozon", "tecno", "озон", "ozon express"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}

	if out := table.Expand(nil); out != nil {
		t.Errorf("Expand(nil) = %v, want nil", out)
	}
}

func TestMatches(t *testing.T) {
	table := Table{"ozon": {"озон", "ozon express"}}

	tests := []struct {
		name   string
		filter string
		seller string
		want   bool
	}{
		{"empty filter passes everything", "", "Кто угодно", true},
		{"exact match", "OZON", "ozon", true},
		{"alias accepted via expansion", "OZON", "Озон", true},
		{"second alias accepted", "OZON", "OZON Express", true},
		{"unknown seller rejected", "OZON", "", false},
		{"no substring matching", "OZON", "ozonchik", false},
		{"multi-value filter", "tecno store, OZON", "ozon", true},
		{"semicolon and newline separators", "a;b\nozon", "Озон", true},
		{"mismatch", "OZON", "Другой продавец", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.Matches(tt.filter, tt.seller); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.filter, tt.seller, got, tt.want)
			}
		})
	}
}

func TestSplitFilter(t *testing.T) {
	got := SplitFilter("OZON, Tecno Store;\nОзон,,")
	want := []string{"ozon", "tecno store", "озон"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitFilter = %v, want %v", got, want)
	}
}
