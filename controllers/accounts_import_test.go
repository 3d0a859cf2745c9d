package controllers

import (
	"strings"
	"testing"
)

func TestParseAccountRows(t *testing.T) {
	header := []string{"ParentName", "Email", "Phone", "ChildFirstName", "ChildLastName", "ChildNickname", "ClassGroup"}

	t.Run("valid rows", func(t *testing.T) {
		rows := [][]string{
			header,
			{"Somsri Jaidee", "Somsri@Example.com", "0812345678", "Mali", "Jaidee", "Nam", "Sunflower (K1)"},
			{"John Parker", "john@example.com", "", "Tom", "", "", ""},
		}

		parsed, rowErrors, err := parseAccountRows(rows)
		if err != nil {
			t.Fatalf("parseAccountRows: %v", err)
		}
		if len(rowErrors) != 0 {
			t.Fatalf("unexpected row errors: %v", rowErrors)
		}
		if len(parsed) != 2 {
			t.Fatalf("got %d rows, want 2", len(parsed))
		}
		if parsed[0].Email != "somsri@example.com" {
			t.Errorf("email not lowercased: %q", parsed[0].Email)
		}
		if parsed[0].ClassGroupName != "Sunflower (K1)" {
			t.Errorf("class group = %q", parsed[0].ClassGroupName)
		}
		if parsed[1].ChildLastName != "" || parsed[1].ChildNickname != "" {
			t.Errorf("optional fields should stay empty: %+v", parsed[1])
		}
	})

	t.Run("blank lines skipped", func(t *testing.T) {
		rows := [][]string{
			header,
			{"", "", "", "", "", "", ""},
			{"Ann Lee", "ann@example.com", "", "May", "", "", ""},
			{},
		}

		parsed, rowErrors, err := parseAccountRows(rows)
		if err != nil {
			t.Fatalf("parseAccountRows: %v", err)
		}
		if len(rowErrors) != 0 {
			t.Fatalf("unexpected row errors: %v", rowErrors)
		}
		if len(parsed) != 1 {
			t.Fatalf("got %d rows, want 1", len(parsed))
		}
	})

	t.Run("bad rows reported individually", func(t *testing.T) {
		rows := [][]string{
			header,
			{"No Email", "not-an-email", "", "Kid", "", "", ""},
			{"No Child", "nochild@example.com", "", "", "", "", ""},
			{"Fine", "fine@example.com", "", "Kid", "", "", ""},
		}

		parsed, rowErrors, err := parseAccountRows(rows)
		if err != nil {
			t.Fatalf("parseAccountRows: %v", err)
		}
		if len(parsed) != 1 {
			t.Fatalf("got %d valid rows, want 1", len(parsed))
		}
		if len(rowErrors) != 2 {
			t.Fatalf("got %d row errors, want 2: %v", len(rowErrors), rowErrors)
		}
		if !strings.Contains(rowErrors[0], "row 2") {
			t.Errorf("first error should name row 2: %q", rowErrors[0])
		}
		if !strings.Contains(rowErrors[1], "row 3") {
			t.Errorf("second error should name row 3: %q", rowErrors[1])
		}
	})

	t.Run("missing required column", func(t *testing.T) {
		rows := [][]string{
			{"ParentName", "Phone"},
			{"Somsri", "0812345678"},
		}
		if _, _, err := parseAccountRows(rows); err == nil {
			t.Fatal("expected header validation error")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		if _, _, err := parseAccountRows(nil); err == nil {
			t.Fatal("expected error for empty file")
		}
	})

	t.Run("reordered columns", func(t *testing.T) {
		rows := [][]string{
			{"ChildFirstName", "Email", "ParentName"},
			{"Mali", "p@example.com", "Parent A"},
		}
		parsed, _, err := parseAccountRows(rows)
		if err != nil {
			t.Fatalf("parseAccountRows: %v", err)
		}
		if len(parsed) != 1 || parsed[0].ChildFirstName != "Mali" || parsed[0].ParentName != "Parent A" {
			t.Fatalf("column order not honored: %+v", parsed)
		}
	})
}

func TestUsernameFromEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		taken map[string]bool
		want  string
	}{
		{"plain local part", "somsri@example.com", nil, "somsri"},
		{"uppercase folded", "John.Parker@example.com", nil, "john.parker"},
		{"invalid runes stripped", "añ a+tag@example.com", nil, "aatag"},
		{"all invalid falls back", "ญาญ่า@example.com", nil, "parent"},
		{"collision gets suffix", "somsri@example.com", map[string]bool{"somsri": true}, "somsri2"},
		{"suffix increments", "somsri@example.com", map[string]bool{"somsri": true, "somsri2": true}, "somsri3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taken := func(u string) bool { return tt.taken[u] }
			if got := usernameFromEmail(tt.email, taken); got != tt.want {
				t.Errorf("usernameFromEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}
