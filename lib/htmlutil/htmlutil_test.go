package htmlutil

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<td>Φυσική <b>Ι</b></td>`))
	if err != nil {
		t.Fatal(err)
	}
	text := GetText(doc)
	if text != "Φυσική Ι" {
		t.Fatalf("got %q", text)
	}
}

func TestCleanText(t *testing.T) {
	cases := map[string]string{
		"  Φυσική   Ι \n":        "Φυσική Ι",
		"Ανάλυση  ΙΙ":  "Ανάλυση ΙΙ",
		"":                       "",
		"\t\n ":                  "",
		"ήδη καθαρό":             "ήδη καθαρό",
	}
	for in, want := range cases {
		if got := CleanText(in); got != want {
			t.Fatalf("CleanText(%q) = %q, want %q", in, got, want)
		}
	}
}
