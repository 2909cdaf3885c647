package llm

// Persona identifiers
const (
	PersonaParalegal  = "Paralegal"
	PersonaLitigation = "Litigation Associate"
	PersonaContracts  = "Contracts Counsel"
)

// Personas lists the selectable personas in display order.
var Personas = []string{PersonaParalegal, PersonaLitigation, PersonaContracts}

// GetSystemPrompt returns a persona-specific system prompt to be sent as a
// system message to the LLM. Empty string means no system prompt.
func GetSystemPrompt(persona string) string {
	switch persona {
	case PersonaParalegal:
		return "You are a paralegal at a small law firm. Focus on document collection, deadlines, client follow-ups and case file organisation. Give short, practical checklists and never offer legal conclusions. Respond in under 80 words."
	case PersonaLitigation:
		return "You are a litigation associate. Emphasize procedural posture, limitation periods, evidence to gather, and the next filing or hearing. Flag risks plainly and note where a supervising attorney should decide."
	case PersonaContracts:
		return "You are contracts counsel. Review obligations, termination and indemnity clauses, governing law and notice provisions. Quote the clause you rely on and suggest concrete redlines where useful."
	default:
		return ""
	}
}
