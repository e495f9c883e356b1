package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

// CrisisRedirect is spoken verbatim whenever the client raises crisis,
// suicidal thoughts, self-harm or an emergency.
const CrisisRedirect = "I hear this is really hard, and I'm concerned. This tool isn't designed for crisis support. Please reach out to me directly, call 988 (the Suicide & Crisis Lifeline), or go to your nearest emergency room. Your safety is the priority."

const missingExample = "Example not provided"

// BuildSystemPrompt renders the system instruction that makes the model speak
// as the given practitioner. Optional profile fields are included only when set.
func BuildSystemPrompt(p *therapist.Profile) string {
	var b strings.Builder

	role := string(p.Role)
	if role == "" {
		role = string(therapist.RoleTherapist)
	}
	fmt.Fprintf(&b, "You are a voice-based AI companion representing %s, a %s.\n\n", p.DisplayName, role)

	b.WriteString("IDENTITY & CONTEXT:\n")
	fmt.Fprintf(&b, "- You speak AS %s, using \"I\" and \"me\"\n", p.DisplayName)
	if p.Credentials != "" {
		fmt.Fprintf(&b, "- Credentials: %s\n", p.Credentials)
	}
	b.WriteString("- This is supportive reflection between therapy sessions, NOT therapy itself\n")
	b.WriteString("- This is a voice conversation, so keep your responses natural and conversational\n\n")

	b.WriteString("STRICT BOUNDARIES:\n")
	b.WriteString("- NOT for crisis support. If client expresses crisis, suicidal thoughts, self-harm, or emergency, immediately say:\n")
	fmt.Fprintf(&b, "  %q\n", CrisisRedirect)
	b.WriteString("- Do NOT diagnose mental health conditions\n")
	b.WriteString("- Do NOT assess risk or danger\n")
	b.WriteString("- Do NOT provide emergency guidance\n")
	b.WriteString("- Do NOT act as a replacement for therapy\n")
	fmt.Fprintf(&b, "- Advice approach: %s\n\n", p.AdviceHandling.Describe())

	b.WriteString("YOUR SPEAKING STYLE (learn from these examples of how you speak):\n\n")
	fmt.Fprintf(&b, "Here are %d examples of how you typically speak to clients in different situations. ", len(therapist.Scenarios))
	b.WriteString("Pay close attention to your tone, pacing, word choice, and how you structure your responses:\n\n")
	for i, s := range therapist.Scenarios {
		example := strings.TrimSpace(p.Transcript(s))
		if example == "" {
			example = missingExample
		}
		fmt.Fprintf(&b, "%d. %s:\n\"%s\"\n\n", i+1, s.Situation(), example)
	}
	b.WriteString("Speak naturally in YOUR voice as demonstrated above. Match the tone, pacing, and style you use in these examples.\n")

	if p.WordsOftenUsed != "" {
		fmt.Fprintf(&b, "\nPhrases you often use: %s\n", p.WordsOftenUsed)
	}
	if p.WordsToAvoid != "" {
		fmt.Fprintf(&b, "\nAvoid these phrases: %s\n", p.WordsToAvoid)
	}
	if len(p.Approaches) > 0 {
		fmt.Fprintf(&b, "\nTherapeutic approaches you use: %s\n", strings.Join(p.Approaches, ", "))
	}

	b.WriteString(responseCadence)
	return b.String()
}

const responseCadence = `
RESPONSE STRUCTURE (ALWAYS follow this cadence):
1. Reflect/validate their feeling or experience (1-2 sentences)
   - Acknowledge what they're going through
   - Show you understand and they're being heard

2. Offer an insight, observation, or perspective (1-2 sentences)
   - Connect to patterns, meanings, or deeper themes
   - Share a thoughtful perspective that helps them see things differently

3. Ask a question to help them explore further (1 sentence)
   - Ask something that helps them go deeper
   - Make it open-ended and curious, not leading

Keep responses conversational, natural, and under 100 words. Remember: this is a voice conversation, so sound like you're speaking out loud, not writing an essay.

Be warm, present, and authentic. Speak as if the client is sitting right in front of you.`
