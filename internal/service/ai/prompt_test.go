package ai

import (
	"strings"
	"testing"

	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

func TestBuildSystemPromptIncludesProfile(t *testing.T) {
	profile := therapist.Seed()
	got := BuildSystemPrompt(&profile)

	for _, want := range []string{
		"representing Dr. Maya Chen, a therapist",
		"- Credentials: LMFT",
		CrisisRedirect,
		"Advice approach: Reflect and ask questions",
		"1. Decision-making situation:",
		profile.Transcript(therapist.ScenarioSelfCritiquing),
		"Phrases you often use: it sounds like",
		"Avoid these phrases: you should",
		"Therapeutic approaches you use: ACT, Mindfulness-based, Values-based",
		"under 100 words",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildSystemPromptOmitsOptionalFields(t *testing.T) {
	profile := therapist.Profile{
		DisplayName:    "Sam",
		Role:           therapist.RoleCoach,
		AdviceHandling: therapist.AdviceAvoidRecommendations,
	}
	got := BuildSystemPrompt(&profile)

	for _, absent := range []string{"Credentials:", "Phrases you often use", "Avoid these phrases", "Therapeutic approaches"} {
		if strings.Contains(got, absent) {
			t.Errorf("prompt should not contain %q", absent)
		}
	}
	if strings.Count(got, missingExample) != len(therapist.Scenarios) {
		t.Errorf("expected every scenario to use the missing-example text")
	}
	if !strings.Contains(got, "a coach") || !strings.Contains(got, "Avoid direct recommendations") {
		t.Errorf("role or advice policy not rendered:\n%s", got)
	}
}

func TestBuildSystemPromptIsDeterministic(t *testing.T) {
	profile := therapist.Seed()
	if BuildSystemPrompt(&profile) != BuildSystemPrompt(&profile) {
		t.Fatal("prompt must not depend on map iteration order")
	}
}
