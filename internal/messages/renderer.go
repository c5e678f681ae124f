// Package messages renders outbound message text: template placeholder
// substitution, time-of-day greetings, and the fixed fallback texts used
// when no stored template applies.
package messages

import (
	"strings"
	"time"
)

// Kinds of stored templates. Each kind is balanced independently: the
// least-used active template of the kind is picked for the next send.
const (
	KindOpening      = "opening"
	KindApology      = "apology"
	KindPresentation = "presentation"
	KindRelative     = "relative"
)

// Template placeholders are written in {chave} form.
const (
	PlaceholderGreeting  = "{saudacao}"
	PlaceholderFirstName = "{nome}"
	PlaceholderAgentName = "{consultor}"
	PlaceholderPronoun   = "{pronome}"
	PlaceholderArticle   = "{artigo}"
)

// Values carries the data substituted into template placeholders. Gender
// is "M" or "F" and refers to the lead, selecting {pronome} and {artigo}.
type Values struct {
	ContactName string
	AgentName   string
	Gender      string
	Now         time.Time
}

var saoPaulo = mustLoadLocation("America/Sao_Paulo")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Greeting returns the Portuguese salutation for the given instant in
// São Paulo wall-clock time.
func Greeting(now time.Time) string {
	hour := now.In(saoPaulo).Hour()
	switch {
	case hour >= 5 && hour < 12:
		return "Bom dia"
	case hour >= 12 && hour < 18:
		return "Boa tarde"
	default:
		return "Boa noite"
	}
}

// FirstName extracts the first word of a full name.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Render substitutes the known placeholders into a template body.
func Render(body string, v Values) string {
	pronoun, article := pronouns(v.Gender)
	replacer := strings.NewReplacer(
		PlaceholderGreeting, Greeting(v.Now),
		PlaceholderFirstName, FirstName(v.ContactName),
		PlaceholderAgentName, v.AgentName,
		PlaceholderPronoun, pronoun,
		PlaceholderArticle, article,
	)
	return replacer.Replace(body)
}

func pronouns(gender string) (pronoun, article string) {
	if gender == "F" {
		return "ela", "a"
	}
	return "ele", "o"
}

// DefaultOpening is used when no opening template is stored.
const DefaultOpening = "{saudacao}, {nome}! Tudo bem? Estou entrando em contato sobre o seu interesse. Você pode falar agora?"

// Apology is sent when the person denies being the lead.
const Apology = "Desculpe o incômodo! Devo ter anotado o número errado. Tenha um ótimo dia!"

// RelativeHandOff renders the hand-off message sent when a relative or
// third party answers. gender is "M" or "F" and selects the pronoun for
// the absent lead.
func RelativeHandOff(contactName, gender string, now time.Time) string {
	pronoun, article := pronouns(gender)

	var b strings.Builder
	b.WriteString(Greeting(now))
	b.WriteString("! Entendi, obrigado por avisar. Quando puder, pode pedir para ")
	b.WriteString(pronoun)
	b.WriteString(" me chamar neste número? Estou enviando um material sobre ")
	b.WriteString(article)
	b.WriteString(" ")
	b.WriteString(FirstName(contactName))
	b.WriteString(" ter demonstrado interesse. Obrigado!")
	return b.String()
}
