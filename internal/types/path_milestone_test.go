package types

import (
	"testing"

	"github.com/google/uuid"
)

func TestCriteriaRoundTrip(t *testing.T) {
	in := MilestoneCriteria{
		Type:            MilestoneCriteriaRequiredSteps,
		RequiredStepIDs: []uuid.UUID{uuid.New(), uuid.New()},
	}
	m := &PathMilestone{Criteria: EncodeCriteria(in)}

	out, err := m.DecodeCriteria()
	if err != nil {
		t.Fatalf("DecodeCriteria: %v", err)
	}
	if out.Type != in.Type || len(out.RequiredStepIDs) != 2 {
		t.Fatalf("criteria did not survive the round trip: %+v", out)
	}
}

func TestDecodeCriteriaEmpty(t *testing.T) {
	var m PathMilestone
	out, err := m.DecodeCriteria()
	if err != nil {
		t.Fatalf("DecodeCriteria on empty: %v", err)
	}
	if out.Type != "" {
		t.Fatalf("empty criteria should decode to the zero value, got %+v", out)
	}
}
