package messages

import (
	"strings"
	"testing"
	"time"
)

func atSaoPauloHour(hour int) time.Time {
	return time.Date(2026, 3, 10, hour, 30, 0, 0, saoPaulo)
}

func TestGreetingByHour(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{5, "Bom dia"},
		{11, "Bom dia"},
		{12, "Boa tarde"},
		{17, "Boa tarde"},
		{18, "Boa noite"},
		{23, "Boa noite"},
		{2, "Boa noite"},
	}
	for _, tt := range tests {
		if got := Greeting(atSaoPauloHour(tt.hour)); got != tt.want {
			t.Fatalf("Greeting at %dh = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	got := Render("{saudacao}, {nome}! Tudo bem?", Values{
		ContactName: "Gustavo Silva",
		Now:         atSaoPauloHour(9),
	})
	want := "Bom dia, Gustavo! Tudo bem?"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderAgentAndPronounPlaceholders(t *testing.T) {
	got := Render("Olá, sou {consultor}. Pode pedir para {pronome} falar sobre {artigo} {nome}?", Values{
		ContactName: "Maria Souza",
		AgentName:   "Carlos",
		Gender:      "F",
		Now:         atSaoPauloHour(15),
	})
	want := "Olá, sou Carlos. Pode pedir para ela falar sobre a Maria?"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}

	masculineDefault := Render("{pronome}/{artigo}", Values{Now: atSaoPauloHour(9)})
	if masculineDefault != "ele/o" {
		t.Fatalf("default pronouns = %q, want %q", masculineDefault, "ele/o")
	}
}

func TestFirstName(t *testing.T) {
	if got := FirstName("Maria das Dores"); got != "Maria" {
		t.Fatalf("FirstName = %q", got)
	}
	if got := FirstName("  "); got != "" {
		t.Fatalf("FirstName of blank = %q", got)
	}
}

func TestRelativeHandOffPronouns(t *testing.T) {
	masculine := RelativeHandOff("Gustavo Silva", "M", atSaoPauloHour(9))
	if !strings.Contains(masculine, "pedir para ele") {
		t.Fatalf("masculine hand-off missing pronoun: %s", masculine)
	}

	feminine := RelativeHandOff("Maria Souza", "F", atSaoPauloHour(15))
	if !strings.Contains(feminine, "pedir para ela") {
		t.Fatalf("feminine hand-off missing pronoun: %s", feminine)
	}
	if !strings.HasPrefix(feminine, "Boa tarde") {
		t.Fatalf("hand-off greeting wrong: %s", feminine)
	}
}
