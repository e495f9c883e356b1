package companion

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

// Step 设置向导的步骤
type Step int

const (
	StepBasic Step = iota
	StepVoice
	StepGuardrails
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepBasic:
		return "basic"
	case StepVoice:
		return "voice"
	case StepGuardrails:
		return "guardrails"
	case StepComplete:
		return "complete"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ErrWrongStep is returned when a wizard action does not belong to the current step.
var ErrWrongStep = errors.New("companion: action not valid in this step")

// SetupClient persists what the wizard collected.
type SetupClient interface {
	CreateTherapist(ctx context.Context, draft therapist.Draft) (string, error)
	UploadRecording(ctx context.Context, therapistID string, scenario therapist.Scenario, audio []byte) (therapist.RecordingResult, error)
}

// Guardrails are the answers of the last wizard step.
type Guardrails struct {
	AdviceHandling therapist.AdviceHandling
	Approaches     []string
	WordsOftenUsed string
	WordsToAvoid   string
}

// SetupResult is what Finish reports back.
type SetupResult struct {
	TherapistID  string
	Recordings   []therapist.RecordingResult
	Placeholders []therapist.Scenario
}

// Wizard walks a practitioner through basic info, six voice prompts and the
// guardrail preferences.
type Wizard struct {
	step       Step
	draft      therapist.Draft
	prompt     int
	recordings map[therapist.Scenario][]byte
	created    string
}

// NewWizard returns a wizard at StepBasic.
func NewWizard() *Wizard {
	return &Wizard{recordings: make(map[therapist.Scenario][]byte, len(therapist.Scenarios))}
}

// Step returns the current step.
func (w *Wizard) Step() Step { return w.step }

// Draft returns the answers collected so far.
func (w *Wizard) Draft() therapist.Draft { return w.draft }

// SubmitBasic records name, role and credentials and moves to the voice step.
func (w *Wizard) SubmitBasic(name string, role therapist.Role, credentials string) error {
	if w.step != StepBasic {
		return ErrWrongStep
	}

	draft := w.draft
	draft.DisplayName = name
	draft.Role = role
	draft.Credentials = credentials
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return err
	}

	w.draft = draft
	w.step = StepVoice
	return nil
}

// Prompt returns the scenario being recorded and its position (0-based).
func (w *Wizard) Prompt() (therapist.Scenario, int) {
	return therapist.Scenarios[w.prompt], w.prompt
}

// Recorded reports whether the current prompt has a recording.
func (w *Wizard) Recorded() bool {
	return len(w.recordings[therapist.Scenarios[w.prompt]]) > 0
}

// Record stores audio for the current prompt, replacing an earlier take.
func (w *Wizard) Record(audio []byte) error {
	if w.step != StepVoice {
		return ErrWrongStep
	}
	if len(audio) == 0 {
		return failure.Validation("recording is empty")
	}
	w.recordings[therapist.Scenarios[w.prompt]] = append([]byte(nil), audio...)
	return nil
}

// Discard drops the recording of the current prompt.
func (w *Wizard) Discard() error {
	if w.step != StepVoice {
		return ErrWrongStep
	}
	delete(w.recordings, therapist.Scenarios[w.prompt])
	return nil
}

// Next advances to the next prompt, or to the guardrails after the last one.
// The current prompt must be recorded first.
func (w *Wizard) Next() error {
	if w.step != StepVoice {
		return ErrWrongStep
	}
	if !w.Recorded() {
		return failure.Validation("record a response to %q before continuing", therapist.Scenarios[w.prompt].Title())
	}
	if w.prompt < len(therapist.Scenarios)-1 {
		w.prompt++
		return nil
	}
	w.step = StepGuardrails
	return nil
}

// Previous goes back one prompt; from the first prompt it returns to the
// basic step and from the guardrails to the last prompt.
func (w *Wizard) Previous() error {
	switch w.step {
	case StepVoice:
		if w.prompt > 0 {
			w.prompt--
			return nil
		}
		w.step = StepBasic
	case StepGuardrails:
		w.step = StepVoice
		w.prompt = len(therapist.Scenarios) - 1
	default:
		return ErrWrongStep
	}
	return nil
}

// Finish stores the guardrails, creates the profile and uploads every
// recording in scenario order. On an upload error the profile already
// exists; the result carries its id and a retry reuses it.
func (w *Wizard) Finish(ctx context.Context, client SetupClient, g Guardrails) (SetupResult, error) {
	if w.step != StepGuardrails {
		return SetupResult{}, ErrWrongStep
	}

	draft := w.draft
	draft.AdviceHandling = g.AdviceHandling
	draft.Approaches = g.Approaches
	draft.WordsOftenUsed = g.WordsOftenUsed
	draft.WordsToAvoid = g.WordsToAvoid
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return SetupResult{}, err
	}
	w.draft = draft

	if w.created == "" {
		id, err := client.CreateTherapist(ctx, draft)
		if err != nil {
			return SetupResult{}, fmt.Errorf("create therapist: %w", err)
		}
		w.created = id
	}
	id := w.created

	result := SetupResult{TherapistID: id}
	for _, scenario := range therapist.Scenarios {
		audio, ok := w.recordings[scenario]
		if !ok {
			continue
		}
		rec, err := client.UploadRecording(ctx, id, scenario, audio)
		if err != nil {
			return result, fmt.Errorf("upload %s: %w", scenario, err)
		}
		result.Recordings = append(result.Recordings, rec)
		if rec.Placeholder {
			result.Placeholders = append(result.Placeholders, scenario)
		}
	}

	w.step = StepComplete
	return result, nil
}
