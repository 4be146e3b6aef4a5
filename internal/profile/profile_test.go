package profile

import (
	"strings"
	"testing"
)

func TestAttributesCoverEveryName(t *testing.T) {
	names := Attributes()
	if len(names) != 15 {
		t.Fatalf("expected 15 attribute names, got %d", len(names))
	}

	var p Profile
	for _, name := range names {
		if !IsAttribute(name) {
			t.Fatalf("expected %q to be a known attribute", name)
		}
		if _, ok := p.Attribute(name); !ok {
			t.Fatalf("expected Attribute to resolve %q", name)
		}
	}

	if IsAttribute("favorite_color") {
		t.Fatalf("expected unknown name to be rejected")
	}
	if _, ok := p.Attribute("favorite_color"); ok {
		t.Fatalf("expected Attribute to reject unknown name")
	}
}

func TestAttributesReturnsCopy(t *testing.T) {
	names := Attributes()
	names[0] = "mutated"

	if Attributes()[0] != AttrRelationshipGoals {
		t.Fatalf("expected canonical list to be unaffected by caller mutation")
	}
}

func TestUnmarshalStrict(t *testing.T) {
	data := []byte(`{
		"relationship_goals": "long term",
		"age": {"their_age": 29, "preferred_age_range_for_partner": "25-35"},
		"location": {"their_location": "Berlin"}
	}`)

	p, err := UnmarshalStrict(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.RelationshipGoals != "long term" {
		t.Fatalf("unexpected relationship goals: %q", p.RelationshipGoals)
	}
	if p.Age.Years != 29 {
		t.Fatalf("unexpected age: %d", p.Age.Years)
	}
	if p.Location.Current != "Berlin" {
		t.Fatalf("unexpected location: %q", p.Location.Current)
	}
}

func TestUnmarshalStrictRejectsUnknownKeys(t *testing.T) {
	_, err := UnmarshalStrict([]byte(`{"favorite_color": "green"}`))
	if err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
	if !strings.Contains(err.Error(), "favorite_color") {
		t.Fatalf("expected error to name the offending key, got: %v", err)
	}
}

func TestUnmarshalStrictValidates(t *testing.T) {
	_, err := UnmarshalStrict([]byte(`{"age": {"their_age": -1}}`))
	if err == nil {
		t.Fatalf("expected negative age to be rejected")
	}

	_, err = UnmarshalStrict([]byte(`{"appearance": {"importance_of_appearance_on_a_scale_of_1_to_10": 11}}`))
	if err == nil {
		t.Fatalf("expected out-of-range importance to be rejected")
	}
}

func TestMergeOverlaysPopulatedFieldsOnly(t *testing.T) {
	current := &Profile{
		RelationshipGoals: "long term",
		Smoking:           "never",
		Age:               Age{Years: 29},
	}

	current.Merge(&Profile{
		RelationshipGoals: "marriage",
		Pets:              "one cat",
	})

	if current.RelationshipGoals != "marriage" {
		t.Fatalf("expected populated field to overwrite, got %q", current.RelationshipGoals)
	}
	if current.Pets != "one cat" {
		t.Fatalf("expected new field to be set, got %q", current.Pets)
	}
	if current.Smoking != "never" {
		t.Fatalf("expected untouched field to survive, got %q", current.Smoking)
	}
	if current.Age.Years != 29 {
		t.Fatalf("expected zero incoming age to keep current value, got %d", current.Age.Years)
	}
}

func TestMergeNilIsNoop(t *testing.T) {
	current := &Profile{Smoking: "never"}
	current.Merge(nil)

	if current.Smoking != "never" {
		t.Fatalf("expected profile to be unchanged")
	}
}
