package dialogue

import (
	"context"
	"encoding/json"
	"fmt"

	_ "embed"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/profile"
)

//go:embed instructions.md
var assistantInstructions string

// Turn is the structured result of one open dialogue exchange: the assistant's
// reply plus the profile fragment extracted from everything the user has said
// so far.
type Turn struct {
	AssistantResponse string          `json:"assistant_response"`
	UserProfile       profile.Profile `json:"user_profile"`
}

// extractTurn runs one AI dialogue turn over the conversation history.
func extractTurn(ctx context.Context, completer ai.StructuredCompleter, history []ai.Message) (*Turn, error) {
	raw, err := completer.Complete(ctx, ai.StructuredRequest{
		System:   assistantInstructions,
		Messages: history,
		Schema:   turnSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("dialogue turn: %w", err)
	}

	var turn Turn
	if err := json.Unmarshal(raw, &turn); err != nil {
		return nil, fmt.Errorf("decode dialogue turn: %w", err)
	}

	if err := turn.UserProfile.Validate(); err != nil {
		return nil, fmt.Errorf("extracted profile: %w", err)
	}

	return &turn, nil
}

func turnSchema() *ai.Schema {
	return ai.Object(map[string]*ai.Schema{
		"assistant_response": {Type: ai.TypeString},
		"user_profile":       profileSchema(),
	})
}

// profileSchema mirrors the fixed attribute set of profile.Profile, nested
// self/preference shapes included. The model may leave fields empty but can
// never introduce keys outside the set.
func profileSchema() *ai.Schema {
	str := func() *ai.Schema { return &ai.Schema{Type: ai.TypeString} }

	return ai.Object(map[string]*ai.Schema{
		profile.AttrRelationshipGoals: str(),
		profile.AttrAppearance: ai.Object(map[string]*ai.Schema{
			"personal_appearance":                            str(),
			"appearance_preferred_in_partner":                str(),
			"importance_of_appearance_on_a_scale_of_1_to_10": {Type: ai.TypeInteger},
		}),
		profile.AttrLocation: ai.Object(map[string]*ai.Schema{
			"their_location":          str(),
			"willingness_to_relocate": str(),
		}),
		profile.AttrSpirituality: ai.Object(map[string]*ai.Schema{
			"their_spirituality":                str(),
			"spirituality_preferred_in_partner": str(),
		}),
		profile.AttrPersonality: ai.Object(map[string]*ai.Schema{
			"their_personality_attributes":                str(),
			"personality_attributes_preferred_in_partner": str(),
		}),
		profile.AttrAge: ai.Object(map[string]*ai.Schema{
			"their_age":                       {Type: ai.TypeInteger},
			"preferred_age_range_for_partner": str(),
		}),
		profile.AttrInterests: ai.Object(map[string]*ai.Schema{
			"their_interests":                str(),
			"preferred_interests_in_partner": str(),
		}),
		profile.AttrIdentity: ai.Object(map[string]*ai.Schema{
			"their_identity":               str(),
			"desired_identity_for_partner": str(),
		}),
		profile.AttrKids: ai.Object(map[string]*ai.Schema{
			"has_kids_or_wishes_to_have_kids":    str(),
			"preference_for_partner_having_kids": str(),
		}),
		profile.AttrSmoking:             str(),
		profile.AttrPets:                str(),
		profile.AttrCareerGoals:         str(),
		profile.AttrAnnualIncome:        str(),
		profile.AttrWillingnessToTravel: str(),
		profile.AttrSpecialRequests:     str(),
	})
}
