// Package classifier implements the language-model collaborator on Gemini:
// intent classification over a rendered transcript, name equivalence for
// the denial flow, and first-name gender detection.
package classifier

import (
	"context"
	"encoding/json"
	"strings"

	"leadbot_backend/internal/conversation"
	"leadbot_backend/platform/apperr"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/logger"

	"google.golang.org/genai"
)

const intentSystemPrompt = `Você é um classificador de intenções para conversas de qualificação de leads por WhatsApp.
Dada a transcrição de uma conversa (turnos "AI:" do atendente e "Cliente:" do cliente), classifique a intenção da resposta mais recente do cliente em exatamente uma categoria:

- confirmation: o cliente confirma ser a pessoa procurada ou demonstra interesse em continuar.
- objection: o cliente levanta uma objeção (preço, tempo, desconfiança) mas não nega ser a pessoa.
- denial: o cliente nega ser a pessoa procurada.
- relative: quem responde é um parente ou terceiro, não a pessoa procurada.
- neutral: resposta sem sinal claro (saudação, pergunta vaga, pedido para repetir).
- unclassified: impossível determinar a intenção.

Responda apenas com o JSON pedido.`

const namesSystemPrompt = `Você compara nomes de pessoas no Brasil.
Dados dois nomes, responda se podem se referir à mesma pessoa, considerando apelidos e abreviações comuns (ex.: "Zé" para "José", "Gu" para "Gustavo", primeiro nome apenas).
Responda apenas com o JSON pedido.`

const genderSystemPrompt = `Dado um primeiro nome brasileiro, responda o gênero mais provável: "M" ou "F".
Responda apenas com o JSON pedido.`

// Gemini implements conversation.Classifier.
type Gemini struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewGemini creates the Gemini-backed classifier.
func NewGemini(ctx context.Context, cfg config.ClassifierConfig, log *logger.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperr.Remote("create gemini client", err)
	}

	return &Gemini{
		client: client,
		model:  cfg.GetGeminiModel(),
		log:    log,
	}, nil
}

// ClassifyIntent maps a transcript to one of the closed-set intents. Any
// failure or out-of-set answer yields IntentUnclassified with a nil error:
// ambiguity is never fatal for the conversation flow.
func (g *Gemini) ClassifyIntent(ctx context.Context, transcript string) (conversation.Intent, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intent": {
				Type: genai.TypeString,
				Enum: []string{
					string(conversation.IntentConfirmation),
					string(conversation.IntentObjection),
					string(conversation.IntentDenial),
					string(conversation.IntentRelative),
					string(conversation.IntentNeutral),
					string(conversation.IntentUnclassified),
				},
			},
		},
		Required: []string{"intent"},
	}

	var out struct {
		Intent string `json:"intent"`
	}
	if err := g.generateJSON(ctx, intentSystemPrompt, transcript, schema, &out); err != nil {
		g.log.RemoteError("classifier", "classify_intent", err)
		return conversation.IntentUnclassified, nil
	}

	intent := conversation.Intent(out.Intent)
	if !intent.Valid() {
		g.log.Warn("classifier returned out-of-set intent", "intent", out.Intent)
		return conversation.IntentUnclassified, nil
	}
	return intent, nil
}

// NamesEquivalent judges nickname/abbreviation equivalence of two names.
func (g *Gemini) NamesEquivalent(ctx context.Context, a, b string) (bool, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"equivalent": {Type: genai.TypeBoolean},
		},
		Required: []string{"equivalent"},
	}

	prompt := "Nome A: " + a + "\nNome B: " + b

	var out struct {
		Equivalent bool `json:"equivalent"`
	}
	if err := g.generateJSON(ctx, namesSystemPrompt, prompt, schema, &out); err != nil {
		return false, apperr.Remote("name equivalence check", err)
	}
	return out.Equivalent, nil
}

// DetectGender guesses M/F from a first name, defaulting to M.
func (g *Gemini) DetectGender(ctx context.Context, name string) (string, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"gender": {Type: genai.TypeString, Enum: []string{"M", "F"}},
		},
		Required: []string{"gender"},
	}

	var out struct {
		Gender string `json:"gender"`
	}
	if err := g.generateJSON(ctx, genderSystemPrompt, "Nome: "+name, schema, &out); err != nil {
		g.log.RemoteError("classifier", "detect_gender", err)
		return "M", nil
	}
	if out.Gender != "F" {
		return "M", nil
	}
	return "F", nil
}

func (g *Gemini) generateJSON(ctx context.Context, system, prompt string, schema *genai.Schema, out any) error {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    schema,
		})
	if err != nil {
		return err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return apperr.Remote("empty classifier response", nil)
	}
	return json.Unmarshal([]byte(text), out)
}
