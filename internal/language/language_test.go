package language

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		code     string
		wantOK   bool
		wantName string
	}{
		{"ja", true, "Japanese"},
		{"en", true, "English"},
		{"hy", true, "Armenian"},
		{"", true, "Backend default"},
		{"xx", false, ""},
		{"JA", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := Lookup(tt.code)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.code, ok, tt.wantOK)
			}
			if got.Name != tt.wantName {
				t.Errorf("Lookup(%q).Name = %q, want %q", tt.code, got.Name, tt.wantName)
			}
			if IsValidCode(tt.code) != tt.wantOK {
				t.Errorf("IsValidCode(%q) disagrees with Lookup", tt.code)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"ja", "Japanese (日本語)"},
		{"en", "English"},
		{"", "Backend default"},
		{"xx", "xx"},
	}
	for _, tt := range tests {
		if got := Label(tt.code); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestList(t *testing.T) {
	list := List()
	if len(list) != len(languages) {
		t.Fatalf("List() returned %d languages, want %d", len(list), len(languages))
	}
	if list[0].Code != Default {
		t.Errorf("List()[0] = %q, want the default language first", list[0].Code)
	}
	for i := 2; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Errorf("List() not sorted after the default: %q before %q", list[i-1].Name, list[i].Name)
		}
	}
	seen := map[string]bool{}
	for _, lang := range list {
		if seen[lang.Code] {
			t.Errorf("duplicate code %q", lang.Code)
		}
		seen[lang.Code] = true
	}
}
