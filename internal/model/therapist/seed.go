package therapist

import "time"

// DemoID is the identifier of the profile seeded into the in-memory store.
const DemoID = "demo"

// Seed provides a ready-to-talk profile for local runs without a database.
func Seed() Profile {
	return Profile{
		ID:             DemoID,
		DisplayName:    "Dr. Maya Chen",
		Role:           RoleTherapist,
		Credentials:    "LMFT",
		AdviceHandling: AdviceReflectAndAsk,
		Approaches:     []string{"ACT", "Mindfulness-based", "Values-based"},
		Transcripts: map[Scenario]string{
			ScenarioDecisionMaking:      "It sounds like both options pull at you for different reasons. If you picture yourself a year from now, which choice feels more like you?",
			ScenarioAdviceSeeking:       "I hear how much you want someone to just tell you the answer. What do you already sense you might want to do?",
			ScenarioInterpersonal:       "That sounds really frustrating. What do you think was going on for them in that moment?",
			ScenarioEmotionalActivation: "Let's slow down together. Notice your feet on the floor and take one slow breath with me.",
			ScenarioSelfCritiquing:      "That voice is being pretty harsh with you. What would you say to a friend who told you the same thing?",
			ScenarioMeaningMaking:       "It sounds like this is touching something bigger. What matters most to you in how this turns out?",
		},
		WordsOftenUsed: "it sounds like, I'm curious, what matters to you",
		WordsToAvoid:   "you should, always, never",
		AudioURLs:      map[Scenario]string{},
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
