package mirror

import "testing"

func TestValidIndexName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"abc", true},
		{"abc-def_1", true},
		{"", false},
		{"ABC", false},
		{"abcDef", false},
	}

	for _, c := range cases {
		if got := ValidIndexName(c.name); got != c.want {
			t.Errorf("ValidIndexName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestValidIndexNames(t *testing.T) {
	if !ValidIndexNames([]string{"one", "two"}) {
		t.Error("Expected all-lowercase list to be valid")
	}
	if ValidIndexNames([]string{"one", "Two"}) {
		t.Error("Expected list with uppercase entry to be invalid")
	}
	// An empty list passes vacuously.
	if !ValidIndexNames(nil) {
		t.Error("Expected empty list to be valid")
	}
}

func TestValidSettings(t *testing.T) {
	if !ValidSettings(map[string]interface{}{}) {
		t.Error("Expected empty object to be valid settings")
	}
	if !ValidSettings(map[string]interface{}{"number_of_shards": 1}) {
		t.Error("Expected object to be valid settings")
	}
	if ValidSettings(nil) {
		t.Error("Expected nil to be invalid settings")
	}
	if ValidSettings([]interface{}{"a"}) {
		t.Error("Expected array to be invalid settings")
	}
	if ValidSettings("settings") {
		t.Error("Expected string to be invalid settings")
	}
}

func TestValidTypeAndID(t *testing.T) {
	if !ValidType("cat") || ValidType("") {
		t.Error("ValidType should accept non-empty strings only")
	}
	if !ValidID("42") || ValidID("") {
		t.Error("ValidID should accept non-empty strings only")
	}
}
