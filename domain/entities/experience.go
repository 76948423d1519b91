package entities

import "fmt"

// ExperienceType selects the conversation persona: it determines the system
// prompt the session is seeded with and the scripted greeting played when the
// client submits the start sentinel instead of real user text.
type ExperienceType string

const (
	ExperienceGreetingCard ExperienceType = "greeting-card"
	ExperienceStorybook    ExperienceType = "storybook"
	ExperienceDefault      ExperienceType = "default"
)

// StartSentinel is the magic text input that triggers the scripted greeting
// path instead of a language-model round trip.
const StartSentinel = "[START]"

// Experience bundles the prompt template and fixed greeting for one persona.
type Experience struct {
	Type         ExperienceType
	SystemPrompt string
	Greeting     string
}

var experiences = map[ExperienceType]Experience{
	ExperienceGreetingCard: {
		Type: ExperienceGreetingCard,
		SystemPrompt: "You are a warm, playful assistant helping %s design a personalized greeting card. " +
			"Ask one question at a time about the occasion, the recipient, and the tone they want. " +
			"Keep replies short enough to speak aloud.",
		Greeting: "Hi there! I'm so excited to help you make a greeting card today. Who are we making it for?",
	},
	ExperienceStorybook: {
		Type: ExperienceStorybook,
		SystemPrompt: "You are a gentle storyteller co-writing a short illustrated story with %s. " +
			"Ask about the hero, the setting, and what happens next, one question at a time. " +
			"Keep replies short enough to speak aloud.",
		Greeting: "Hello! Let's dream up a story together. What kind of hero should our story have?",
	},
	ExperienceDefault: {
		Type: ExperienceDefault,
		SystemPrompt: "You are a friendly voice assistant chatting with %s. " +
			"Keep replies conversational and short enough to speak aloud.",
		Greeting: "Hey! Great to hear from you. What would you like to talk about?",
	},
}

// ExperienceFor resolves an experience type to its catalog entry, falling back
// to the default persona for empty or unknown types.
func ExperienceFor(t ExperienceType) Experience {
	if exp, ok := experiences[t]; ok {
		return exp
	}
	return experiences[ExperienceDefault]
}

// SystemMessageFor builds the session's initial system message for the given
// experience and user name.
func SystemMessageFor(t ExperienceType, userName string) string {
	return fmt.Sprintf(ExperienceFor(t).SystemPrompt, userName)
}
