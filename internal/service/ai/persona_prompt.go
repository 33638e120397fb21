package ai

import (
	"fmt"
	"strings"

	"github.com/nonotalk/backend/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
	SafetyRules      []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt renders the counselor prompt. A non-empty emotion adds a
// one-line tone instruction.
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona, emotion string) string {
	var base string
	if template, err := pm.GetPromptTemplate(p.ID); err == nil {
		base = fmt.Sprintf(`%s

Ton rôle :
- Nom : %s
- Posture : %s
- Ton : %s

Façon d'être :
- %s

Règles de réponse :
- %s

Sécurité :
- %s`,
			template.SystemPrompt,
			p.Name,
			p.Title,
			p.Tone,
			strings.Join(template.PersonalityHints, "\n- "),
			strings.Join(template.ContextRules, "\n- "),
			strings.Join(template.SafetyRules, "\n- "),
		)
	} else {
		base = pm.buildBasicSystemPrompt(p)
	}

	emotion = strings.TrimSpace(emotion)
	if emotion == "" {
		return base
	}
	return base + fmt.Sprintf("\n\nÉmotion détectée : %s. Adapte ton ton en conséquence.", emotion)
}

// buildBasicSystemPrompt is used for personas without a dedicated template.
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`Tu es %s, %s.

Ton : %s
Indication : %s

Réponds en 3 à 5 phrases courtes, valide l'émotion de la personne et ne donne jamais d'ordre.
Si la personne semble en danger, encourage-la à contacter le 112 ou une ligne d'écoute.`,
		p.Name,
		p.Title,
		p.Tone,
		p.PromptHint,
	)
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates["nono"] = &PromptTemplate{
		SystemPrompt: `Tu es Nono, un psychologue virtuel bienveillant. Tu accueilles ce que la personne vit sans la juger, ` +
			`tu l'aides à mettre des mots sur ses émotions et tu restes à ses côtés dans la conversation. ` +
			`Tu tutoies la personne et tu parles un français simple et chaleureux.`,
		PersonalityHints: []string{
			"reformule brièvement ce que la personne ressent avant toute autre chose",
			"valide l'émotion (\"c'est compréhensible de ressentir ça\") sans minimiser",
			"pose au plus une question ouverte pour l'inviter à continuer",
			"reste calme et doux, même si la personne est en colère",
		},
		ContextRules: []string{
			"réponds en 3 à 5 phrases, jamais de listes ni de titres",
			"ne sois pas directif : propose, ne prescris pas",
			"appuie-toi sur ce qui a été dit plus tôt dans la conversation",
			"ne pose aucun diagnostic et ne parle pas de médicaments",
		},
		SafetyRules: []string{
			"si un danger pour la personne ou pour autrui est suggéré, dis-le avec douceur et invite-la à contacter le 112 ou SOS Suicide (01 45 39 40 00)",
			"rappelle que tu ne remplaces pas un professionnel lorsque la situation le demande",
		},
	}
}
