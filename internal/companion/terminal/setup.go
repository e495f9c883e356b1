package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/companion"
	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

var adviceChoices = []therapist.AdviceHandling{
	therapist.AdviceReflectAndAsk,
	therapist.AdviceOfferPerspective,
	therapist.AdviceAvoidRecommendations,
}

// Setup walks the user through the wizard and returns what Finish reported.
func (t *Terminal) Setup(ctx context.Context, w *companion.Wizard, rec companion.Recorder, client companion.SetupClient) (companion.SetupResult, error) {
	for {
		var err error
		switch w.Step() {
		case companion.StepBasic:
			err = t.basicStep(ctx, w)
		case companion.StepVoice:
			err = t.voiceStep(ctx, w, rec)
		case companion.StepGuardrails:
			var res companion.SetupResult
			var done bool
			res, done, err = t.guardrailsStep(ctx, w, client)
			if done {
				t.setupDone(res)
				return res, nil
			}
		default:
			return companion.SetupResult{}, fmt.Errorf("unexpected wizard step %s", w.Step())
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return companion.SetupResult{}, err
			}
			t.Error(err)
		}
	}
}

func (t *Terminal) basicStep(ctx context.Context, w *companion.Wizard) error {
	t.println(t.styles.title.Render("Step 1 of 3: Basic information"))

	name, err := t.ReadLine(ctx, "Display name:")
	if err != nil {
		return err
	}
	role, err := t.ReadLine(ctx, "Role [therapist/coach] (therapist):")
	if err != nil {
		return err
	}
	credentials, err := t.ReadLine(ctx, "Credentials (optional):")
	if err != nil {
		return err
	}
	return w.SubmitBasic(name, therapist.Role(strings.ToLower(role)), credentials)
}

func (t *Terminal) voiceStep(ctx context.Context, w *companion.Wizard, rec companion.Recorder) error {
	scenario, i := w.Prompt()
	status := "not recorded"
	if w.Recorded() {
		status = "recorded"
	}
	body := t.styles.title.Render(fmt.Sprintf("Step 2 of 3: Question %d of %d", i+1, len(therapist.Scenarios))) + "\n" +
		scenario.Title() + "\n\n" + scenario.RecordingPrompt() + "\n\n" +
		t.styles.status.Render("["+status+"]")
	t.println(t.styles.box.Render(body))

	input, err := t.ReadLine(ctx, "Enter: record · n: next · p: previous · d: discard:")
	if err != nil {
		return err
	}
	switch strings.ToLower(input) {
	case "":
		audio, err := t.recordTake(ctx, rec)
		if err != nil {
			return err
		}
		return w.Record(audio)
	case "n":
		return w.Next()
	case "p":
		return w.Previous()
	case "d":
		return w.Discard()
	}
	t.Info("Unknown command.")
	return nil
}

func (t *Terminal) recordTake(ctx context.Context, rec companion.Recorder) ([]byte, error) {
	capture, err := rec.Start(ctx)
	if err != nil {
		return nil, &companion.TurnError{Stage: companion.StageCapture, Err: failure.Permission(err)}
	}
	if _, err := t.ReadLine(ctx, "● recording, press Enter to stop"); err != nil {
		_ = capture.Abort()
		return nil, err
	}
	audio, err := capture.Stop()
	if err != nil {
		return nil, &companion.TurnError{Stage: companion.StageCapture, Err: err}
	}
	t.Info(fmt.Sprintf("Recorded %d bytes.", len(audio)))
	return audio, nil
}

func (t *Terminal) guardrailsStep(ctx context.Context, w *companion.Wizard, client companion.SetupClient) (companion.SetupResult, bool, error) {
	t.println(t.styles.title.Render("Step 3 of 3: Guardrails"))
	for i, a := range adviceChoices {
		t.Info(fmt.Sprintf("  %d) %s", i+1, a.Describe()))
	}

	var g companion.Guardrails
	choice, err := t.ReadLine(ctx, "When a client asks what to do (1):")
	if err != nil {
		return companion.SetupResult{}, false, err
	}
	g.AdviceHandling = adviceChoices[0]
	if choice != "" {
		var n int
		if _, scanErr := fmt.Sscanf(choice, "%d", &n); scanErr != nil || n < 1 || n > len(adviceChoices) {
			t.Info("Please pick 1, 2 or 3.")
			return companion.SetupResult{}, false, nil
		}
		g.AdviceHandling = adviceChoices[n-1]
	}

	approaches, err := t.ReadLine(ctx, "Approaches, comma separated ("+strings.Join(therapist.KnownApproaches, ", ")+"):")
	if err != nil {
		return companion.SetupResult{}, false, err
	}
	if approaches != "" {
		g.Approaches = strings.Split(approaches, ",")
	}
	if g.WordsOftenUsed, err = t.ReadLine(ctx, "Words or phrases you often use (optional):"); err != nil {
		return companion.SetupResult{}, false, err
	}
	if g.WordsToAvoid, err = t.ReadLine(ctx, "Words or phrases to avoid (optional):"); err != nil {
		return companion.SetupResult{}, false, err
	}

	confirm, err := t.ReadLine(ctx, "Enter: save profile · p: back to recordings:")
	if err != nil {
		return companion.SetupResult{}, false, err
	}
	if strings.EqualFold(confirm, "p") {
		return companion.SetupResult{}, false, w.Previous()
	}

	t.Info("Saving profile and uploading recordings...")
	res, err := w.Finish(ctx, client, g)
	if err != nil {
		return res, false, err
	}
	return res, true, nil
}

func (t *Terminal) setupDone(res companion.SetupResult) {
	body := t.styles.title.Render("Profile saved") + "\n" + "Therapist id: " + res.TherapistID
	if len(res.Placeholders) > 0 {
		titles := make([]string, 0, len(res.Placeholders))
		for _, s := range res.Placeholders {
			titles = append(titles, s.Title())
		}
		body += "\n" + t.styles.alert.Render("Transcription unavailable for: "+strings.Join(titles, ", "))
	}
	t.println(t.styles.box.Render(body))
}
