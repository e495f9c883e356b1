package therapist

import "fmt"

// Scenario is one of the six situations a practitioner records an example
// response for.
type Scenario string

const (
	ScenarioDecisionMaking      Scenario = "decision_making"
	ScenarioAdviceSeeking       Scenario = "advice_seeking"
	ScenarioInterpersonal       Scenario = "interpersonal"
	ScenarioEmotionalActivation Scenario = "emotional_activation"
	ScenarioSelfCritiquing      Scenario = "self_critiquing"
	ScenarioMeaningMaking       Scenario = "meaning_making"
)

// Scenarios is the fixed recording order used by the wizard and the prompt.
var Scenarios = []Scenario{
	ScenarioDecisionMaking,
	ScenarioAdviceSeeking,
	ScenarioInterpersonal,
	ScenarioEmotionalActivation,
	ScenarioSelfCritiquing,
	ScenarioMeaningMaking,
}

type scenarioInfo struct {
	title     string
	situation string
	prompt    string
}

var scenarioCatalog = map[Scenario]scenarioInfo{
	ScenarioDecisionMaking: {
		title:     "Decision Making Situation",
		situation: "Decision-making situation",
		prompt:    "Give an example of how you speak directly to a client who is confused about making a decision. Walk through how you guide them through it, speaking as if the client is in front of you.",
	},
	ScenarioAdviceSeeking: {
		title:     "Advice Seeking Situation",
		situation: "Advice-seeking situation",
		prompt:    "Give an example of how you speak directly to a client who is asking what they should do and wants a clear answer. Walk through how you respond, speaking as if the client is in front of you.",
	},
	ScenarioInterpersonal: {
		title:     "Interpersonal Situation",
		situation: "Interpersonal conflict situation",
		prompt:    "Give an example of how you speak directly to a client who is frustrated or annoyed with someone in their life. Walk through how you help them think about the situation, speaking as if the client is in front of you.",
	},
	ScenarioEmotionalActivation: {
		title:     "Emotional Activation Situation",
		situation: "Emotional activation situation",
		prompt:    "Give an example of how you speak directly to a client who is emotionally activated and having trouble settling down. Walk through how you help them regulate and ground themselves, speaking as if the client is in front of you.",
	},
	ScenarioSelfCritiquing: {
		title:     "Self Critiquing Situation",
		situation: "Self-criticism situation",
		prompt:    "Give an example of how you speak directly to a client who is being very hard on themselves and stuck in self-critical thoughts. Walk through how you guide them, speaking as if the client is in front of you.",
	},
	ScenarioMeaningMaking: {
		title:     "Meaning Making/Perspective Situation",
		situation: "Meaning-making/perspective situation",
		prompt:    "Give an example of how you speak directly to a client who is trying to make sense of a situation and what it means for their life. Walk through how you help them gain perspective, speaking as if the client is in front of you.",
	},
}

// ParseScenario validates a scenario identifier from a URL or form.
func ParseScenario(raw string) (Scenario, error) {
	s := Scenario(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown scenario %q", raw)
	}
	return s, nil
}

// Valid reports whether s belongs to the fixed scenario set.
func (s Scenario) Valid() bool {
	_, ok := scenarioCatalog[s]
	return ok
}

// Title is the wizard heading for s.
func (s Scenario) Title() string { return scenarioCatalog[s].title }

// Situation is the label used when s is quoted as a style example.
func (s Scenario) Situation() string { return scenarioCatalog[s].situation }

// RecordingPrompt is the instruction read to the practitioner before recording.
func (s Scenario) RecordingPrompt() string { return scenarioCatalog[s].prompt }

// Placeholder is the transcript stored when a recording could not be transcribed.
func (s Scenario) Placeholder() string {
	return fmt.Sprintf("[Audio recorded for %s. Transcription unavailable.]", s.Title())
}
