package therapist

import (
	"strings"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
)

// Role is how the practitioner presents to clients.
type Role string

const (
	RoleTherapist Role = "therapist"
	RoleCoach     Role = "coach"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleTherapist || r == RoleCoach
}

// Label is the human-readable role name shown on the conversation page.
func (r Role) Label() string {
	if r == RoleCoach {
		return "Coach"
	}
	return "Therapist"
}

// AdviceHandling is the practitioner's policy for clients who ask what to do.
type AdviceHandling string

const (
	AdviceReflectAndAsk        AdviceHandling = "reflect_and_ask"
	AdviceOfferPerspective     AdviceHandling = "offer_perspective"
	AdviceAvoidRecommendations AdviceHandling = "avoid_recommendations"
)

// Valid reports whether a is a known policy.
func (a AdviceHandling) Valid() bool {
	switch a {
	case AdviceReflectAndAsk, AdviceOfferPerspective, AdviceAvoidRecommendations:
		return true
	}
	return false
}

// Describe renders the policy as an instruction; unknown values fall back to
// reflect-and-ask.
func (a AdviceHandling) Describe() string {
	switch a {
	case AdviceOfferPerspective:
		return "Offer perspective without telling clients what to do"
	case AdviceAvoidRecommendations:
		return "Avoid direct recommendations"
	default:
		return "Reflect and ask questions"
	}
}

// KnownApproaches lists the approach tags offered by the setup wizard.
var KnownApproaches = []string{
	"CBT",
	"ACT",
	"Mindfulness-based",
	"Psychodynamic",
	"Somatic",
	"Values-based",
	"Solution-focused",
	"Narrative",
}

// Profile is the persisted style and guardrail configuration the assistant
// impersonates. The conversation core only reads it.
type Profile struct {
	ID             string              `json:"id"`
	DisplayName    string              `json:"displayName"`
	Role           Role                `json:"role"`
	Credentials    string              `json:"credentials,omitempty"`
	AdviceHandling AdviceHandling      `json:"adviceHandling"`
	Approaches     []string            `json:"approaches,omitempty"`
	Transcripts    map[Scenario]string `json:"transcripts,omitempty"`
	WordsOftenUsed string              `json:"wordsOftenUsed,omitempty"`
	WordsToAvoid   string              `json:"wordsToAvoid,omitempty"`
	AudioURLs      map[Scenario]string `json:"audioUrls,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// Transcript returns the example transcript recorded for s, or "".
func (p *Profile) Transcript(s Scenario) string {
	if p.Transcripts == nil {
		return ""
	}
	return p.Transcripts[s]
}

// Summary is the public view loaded by the conversation page.
type Summary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	Credentials string `json:"credentials,omitempty"`
}

// Summary projects the public fields of p.
func (p *Profile) Summary() Summary {
	return Summary{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		Credentials: p.Credentials,
	}
}

// Draft carries the basic-info and guardrail answers of the setup wizard.
type Draft struct {
	DisplayName    string         `json:"displayName"`
	Role           Role           `json:"role"`
	Credentials    string         `json:"credentials,omitempty"`
	AdviceHandling AdviceHandling `json:"adviceHandling"`
	Approaches     []string       `json:"approaches,omitempty"`
	WordsOftenUsed string         `json:"wordsOftenUsed,omitempty"`
	WordsToAvoid   string         `json:"wordsToAvoid,omitempty"`
}

// Normalize trims free text, drops blank approach tags and fills the
// role/advice defaults.
func (d *Draft) Normalize() {
	d.DisplayName = strings.TrimSpace(d.DisplayName)
	d.Credentials = strings.TrimSpace(d.Credentials)
	d.WordsOftenUsed = strings.TrimSpace(d.WordsOftenUsed)
	d.WordsToAvoid = strings.TrimSpace(d.WordsToAvoid)
	if d.Role == "" {
		d.Role = RoleTherapist
	}
	if d.AdviceHandling == "" {
		d.AdviceHandling = AdviceReflectAndAsk
	}

	approaches := make([]string, 0, len(d.Approaches))
	for _, a := range d.Approaches {
		if a = strings.TrimSpace(a); a != "" {
			approaches = append(approaches, a)
		}
	}
	d.Approaches = approaches
}

// Validate checks a normalized draft.
func (d *Draft) Validate() error {
	if d.DisplayName == "" {
		return failure.Validation("displayName is required")
	}
	if !d.Role.Valid() {
		return failure.Validation("unknown role %q", d.Role)
	}
	if !d.AdviceHandling.Valid() {
		return failure.Validation("unknown adviceHandling %q", d.AdviceHandling)
	}
	return nil
}

// NewProfile materializes a draft under the given identifier.
func NewProfile(id string, d Draft, now time.Time) Profile {
	return Profile{
		ID:             id,
		DisplayName:    d.DisplayName,
		Role:           d.Role,
		Credentials:    d.Credentials,
		AdviceHandling: d.AdviceHandling,
		Approaches:     append([]string(nil), d.Approaches...),
		Transcripts:    make(map[Scenario]string, len(Scenarios)),
		WordsOftenUsed: d.WordsOftenUsed,
		WordsToAvoid:   d.WordsToAvoid,
		AudioURLs:      make(map[Scenario]string, len(Scenarios)),
		CreatedAt:      now.UTC(),
	}
}

// RecordingResult reports what was stored for one scenario recording.
type RecordingResult struct {
	Scenario    Scenario `json:"scenario"`
	AudioURL    string   `json:"audioUrl,omitempty"`
	Transcript  string   `json:"transcript"`
	Placeholder bool     `json:"placeholder"`
}
