package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeLabels(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"python list", "['United Airlines']", []string{"United Airlines"}},
		{"multi", "['United Airlines', 'Southwest Airlines']", []string{"United Airlines", "Southwest Airlines"}},
		{"double quotes", `["Delta Air Lines"]`, []string{"Delta Air Lines"}},
		{"plain", "JetBlue Airways", []string{"JetBlue Airways"}},
		{"duplicates", "['US Airways', 'US Airways']", []string{"US Airways"}},
		{"empty list", "[]", []string{}},
		{"stray commas", "United Airlines,, ,Delta Air Lines", []string{"United Airlines", "Delta Air Lines"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLabels(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeLabels(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabels_Idempotent(t *testing.T) {
	inputs := []string{
		"['United Airlines', 'Southwest Airlines']",
		`["Virgin America"]`,
		"  American Airlines ,US Airways",
		"[]",
		"['Delta Air Lines', 'Delta Air Lines']",
	}
	for _, raw := range inputs {
		once := NormalizeLabels(raw)
		twice := NormalizeLabels(Example{Labels: once}.Expected())
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent for %q: %#v then %#v", raw, once, twice)
		}
	}
}

func TestExample_Expected(t *testing.T) {
	ex := Example{Labels: []string{"United Airlines", "US Airways"}}
	if got := ex.Expected(); got != "United Airlines, US Airways" {
		t.Errorf("Expected() = %q", got)
	}
	if got := (Example{}).Expected(); got != "" {
		t.Errorf("empty Expected() = %q", got)
	}
}

func TestRead(t *testing.T) {
	input := "id,tweet,airlines\n" +
		"1,\"@united thanks, great flight\",['United Airlines']\n" +
		"2,@SouthwestAir and @JetBlue,\"['Southwest Airlines', 'JetBlue Airways']\"\n"

	examples, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(examples))
	}
	if examples[0].Text != "@united thanks, great flight" {
		t.Errorf("unexpected text: %q", examples[0].Text)
	}
	want := []string{"Southwest Airlines", "JetBlue Airways"}
	if !reflect.DeepEqual(examples[1].Labels, want) {
		t.Errorf("labels = %#v, want %#v", examples[1].Labels, want)
	}
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("text,airlines\nhello,[]\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}

	_, err = Read(strings.NewReader(""))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn for empty input, got %v", err)
	}
}

func TestRead_ShortRow(t *testing.T) {
	_, err := Read(strings.NewReader("tweet,airlines\nonly one field\n"))
	if err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")
	if err := os.WriteFile(path, []byte("tweet,airlines\n@VirginAmerica yes,['Virgin America']\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	examples, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(examples) != 1 || examples[0].Expected() != "Virgin America" {
		t.Errorf("unexpected examples: %#v", examples)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestKnownAirlines(t *testing.T) {
	examples := []Example{
		{Labels: []string{"United Airlines", "US Airways"}},
		{Labels: []string{"US Airways"}},
		{Labels: []string{"Delta Air Lines"}},
	}
	want := []string{"United Airlines", "US Airways", "Delta Air Lines"}
	if got := KnownAirlines(examples); !reflect.DeepEqual(got, want) {
		t.Errorf("KnownAirlines() = %#v, want %#v", got, want)
	}
}

func TestTexts(t *testing.T) {
	got := Texts([]Example{{Text: "a"}, {Text: "b"}})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Texts() = %#v", got)
	}
}
