package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Attribute names form a fixed closed set. Store updates and weight vectors may
// only ever reference these keys.
const (
	AttrRelationshipGoals   = "relationship_goals"
	AttrAppearance          = "appearance"
	AttrLocation            = "location"
	AttrSpirituality        = "spirituality"
	AttrPersonality         = "personality_attributes"
	AttrAge                 = "age"
	AttrInterests           = "interests"
	AttrIdentity            = "identity_and_preference"
	AttrKids                = "kids"
	AttrSmoking             = "smoking"
	AttrPets                = "pets"
	AttrCareerGoals         = "career_goals"
	AttrAnnualIncome        = "annual_income"
	AttrWillingnessToTravel = "willingness_to_travel"
	AttrSpecialRequests     = "special_requests"
)

var attributeNames = []string{
	AttrRelationshipGoals,
	AttrAppearance,
	AttrLocation,
	AttrSpirituality,
	AttrPersonality,
	AttrAge,
	AttrInterests,
	AttrIdentity,
	AttrKids,
	AttrSmoking,
	AttrPets,
	AttrCareerGoals,
	AttrAnnualIncome,
	AttrWillingnessToTravel,
	AttrSpecialRequests,
}

// Attributes returns the canonical ordered list of attribute names.
func Attributes() []string {
	return slices.Clone(attributeNames)
}

// IsAttribute reports whether name belongs to the fixed attribute set.
func IsAttribute(name string) bool {
	return slices.Contains(attributeNames, name)
}

// Appearance describes self appearance, the appearance preferred in a partner
// and how important appearance is to the user.
type Appearance struct {
	Personal   string `json:"personal_appearance,omitempty"`
	Preferred  string `json:"appearance_preferred_in_partner,omitempty"`
	Importance int    `json:"importance_of_appearance_on_a_scale_of_1_to_10,omitempty"`
}

type Location struct {
	Current  string `json:"their_location,omitempty"`
	Relocate string `json:"willingness_to_relocate,omitempty"`
}

type Spirituality struct {
	Personal  string `json:"their_spirituality,omitempty"`
	Preferred string `json:"spirituality_preferred_in_partner,omitempty"`
}

type Personality struct {
	Personal  string `json:"their_personality_attributes,omitempty"`
	Preferred string `json:"personality_attributes_preferred_in_partner,omitempty"`
}

type Age struct {
	Years          int    `json:"their_age,omitempty"`
	PreferredRange string `json:"preferred_age_range_for_partner,omitempty"`
}

type Interests struct {
	Personal  string `json:"their_interests,omitempty"`
	Preferred string `json:"preferred_interests_in_partner,omitempty"`
}

type Identity struct {
	Personal string `json:"their_identity,omitempty"`
	Desired  string `json:"desired_identity_for_partner,omitempty"`
}

type Kids struct {
	HasOrWants        string `json:"has_kids_or_wishes_to_have_kids,omitempty"`
	PartnerPreference string `json:"preference_for_partner_having_kids,omitempty"`
}

// Profile is the structured record of a person's matchmaking attributes and
// partner preferences. All fields are optional: a profile is built up
// incrementally over many dialogue turns and may be partially populated when
// matchmaking is attempted.
type Profile struct {
	RelationshipGoals   string       `json:"relationship_goals,omitempty"`
	Appearance          Appearance   `json:"appearance"`
	Location            Location     `json:"location"`
	Spirituality        Spirituality `json:"spirituality"`
	Personality         Personality  `json:"personality_attributes"`
	Age                 Age          `json:"age"`
	Interests           Interests    `json:"interests"`
	Identity            Identity     `json:"identity_and_preference"`
	Kids                Kids         `json:"kids"`
	Smoking             string       `json:"smoking,omitempty"`
	Pets                string       `json:"pets,omitempty"`
	CareerGoals         string       `json:"career_goals,omitempty"`
	AnnualIncome        string       `json:"annual_income,omitempty"`
	WillingnessToTravel string       `json:"willingness_to_travel,omitempty"`
	SpecialRequests     string       `json:"special_requests,omitempty"`
}

// Attribute returns the value stored under the given attribute name. The second
// return value is false when the name is not part of the fixed set.
func (p *Profile) Attribute(name string) (any, bool) {
	switch name {
	case AttrRelationshipGoals:
		return p.RelationshipGoals, true
	case AttrAppearance:
		return p.Appearance, true
	case AttrLocation:
		return p.Location, true
	case AttrSpirituality:
		return p.Spirituality, true
	case AttrPersonality:
		return p.Personality, true
	case AttrAge:
		return p.Age, true
	case AttrInterests:
		return p.Interests, true
	case AttrIdentity:
		return p.Identity, true
	case AttrKids:
		return p.Kids, true
	case AttrSmoking:
		return p.Smoking, true
	case AttrPets:
		return p.Pets, true
	case AttrCareerGoals:
		return p.CareerGoals, true
	case AttrAnnualIncome:
		return p.AnnualIncome, true
	case AttrWillingnessToTravel:
		return p.WillingnessToTravel, true
	case AttrSpecialRequests:
		return p.SpecialRequests, true
	default:
		return nil, false
	}
}

// Validate checks numeric invariants of the profile.
func (p *Profile) Validate() error {
	if p.Age.Years < 0 {
		return fmt.Errorf("age must be non-negative, got %d", p.Age.Years)
	}
	if p.Appearance.Importance < 0 || p.Appearance.Importance > 10 {
		return fmt.Errorf("appearance importance must be within [0, 10], got %d", p.Appearance.Importance)
	}
	return nil
}

// UnmarshalStrict decodes a profile and rejects unknown keys so that the fixed
// attribute set cannot grow silently at the store boundary.
func UnmarshalStrict(data []byte) (*Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Merge overlays an extracted fragment onto the profile. Populated incoming
// fields overwrite, empty incoming fields keep the current value. Dialogue
// extraction returns partial fragments on every turn, so merging must never
// erase previously collected answers.
func (p *Profile) Merge(in *Profile) {
	if in == nil {
		return
	}

	overlay(&p.RelationshipGoals, in.RelationshipGoals)
	overlay(&p.Appearance.Personal, in.Appearance.Personal)
	overlay(&p.Appearance.Preferred, in.Appearance.Preferred)
	overlayInt(&p.Appearance.Importance, in.Appearance.Importance)
	overlay(&p.Location.Current, in.Location.Current)
	overlay(&p.Location.Relocate, in.Location.Relocate)
	overlay(&p.Spirituality.Personal, in.Spirituality.Personal)
	overlay(&p.Spirituality.Preferred, in.Spirituality.Preferred)
	overlay(&p.Personality.Personal, in.Personality.Personal)
	overlay(&p.Personality.Preferred, in.Personality.Preferred)
	overlayInt(&p.Age.Years, in.Age.Years)
	overlay(&p.Age.PreferredRange, in.Age.PreferredRange)
	overlay(&p.Interests.Personal, in.Interests.Personal)
	overlay(&p.Interests.Preferred, in.Interests.Preferred)
	overlay(&p.Identity.Personal, in.Identity.Personal)
	overlay(&p.Identity.Desired, in.Identity.Desired)
	overlay(&p.Kids.HasOrWants, in.Kids.HasOrWants)
	overlay(&p.Kids.PartnerPreference, in.Kids.PartnerPreference)
	overlay(&p.Smoking, in.Smoking)
	overlay(&p.Pets, in.Pets)
	overlay(&p.CareerGoals, in.CareerGoals)
	overlay(&p.AnnualIncome, in.AnnualIncome)
	overlay(&p.WillingnessToTravel, in.WillingnessToTravel)
	overlay(&p.SpecialRequests, in.SpecialRequests)
}

func overlay(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func overlayInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}
