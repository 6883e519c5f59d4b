package csevents

import "maps"

// Payload union typée des métadonnées d'un événement.
// Elle n'est convertie en map JSON qu'au moment de l'écriture en base.
type Payload interface {
	Metadata() map[string]any
}

// SessionDurationPayload durée d'une visite, en minutes
type SessionDurationPayload struct {
	Minutes float64
	// Valid faux quand la valeur stockée n'est pas numérique
	Valid bool
}

func (p SessionDurationPayload) Metadata() map[string]any {
	return map[string]any{"durationMinutes": p.Minutes}
}

type ClickPayload struct{}

func (ClickPayload) Metadata() map[string]any {
	return map[string]any{}
}

// AbandonedPayload étape du formulaire où la visiteuse est partie
type AbandonedPayload struct {
	Step any
}

func (p AbandonedPayload) Metadata() map[string]any {
	if p.Step == nil {
		return map[string]any{}
	}
	return map[string]any{"step": p.Step}
}

// CompletedPayload relie l'événement de fin de réservation au lead
type CompletedPayload struct {
	LeadID string
}

func (p CompletedPayload) Metadata() map[string]any {
	if p.LeadID == "" {
		return map[string]any{}
	}
	return map[string]any{"leadId": p.LeadID}
}

// GenericPayload métadonnées libres pour les autres types
type GenericPayload struct {
	Fields map[string]any
}

func (p GenericPayload) Metadata() map[string]any {
	if p.Fields == nil {
		return map[string]any{}
	}
	return maps.Clone(p.Fields)
}

// DurationMinutes convertit la durée envoyée par le client, 0 si absente ou non numérique
func DurationMinutes(v any) float64 {
	switch d := v.(type) {
	case float64:
		return d
	case float32:
		return float64(d)
	case int:
		return float64(d)
	case int64:
		return float64(d)
	default:
		return 0
	}
}

// DecodePayload reconstruit la variante typée depuis la map stockée
func DecodePayload(t EventType, m map[string]any) Payload {
	switch {
	case t == SessionDuration:
		raw, ok := m["durationMinutes"]
		if !ok {
			return SessionDurationPayload{}
		}
		switch raw.(type) {
		case float64, float32, int, int64:
			return SessionDurationPayload{Minutes: DurationMinutes(raw), Valid: true}
		default:
			return SessionDurationPayload{}
		}
	case t == AbandonedScheduling:
		return AbandonedPayload{Step: m["step"]}
	case t == CompletedScheduling:
		leadID, _ := m["leadId"].(string)
		return CompletedPayload{LeadID: leadID}
	case t.IsClick():
		return ClickPayload{}
	default:
		return GenericPayload{Fields: m}
	}
}

// PayloadFromMetadata construit la variante adaptée à partir des métadonnées reçues du client
func PayloadFromMetadata(t EventType, m map[string]any) Payload {
	if t == SessionDuration {
		return SessionDurationPayload{Minutes: DurationMinutes(m["durationMinutes"]), Valid: true}
	}
	return DecodePayload(t, m)
}
