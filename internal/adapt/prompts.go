package adapt

const summarySystemPrompt = "You are an expert educational content adapter for dyslexic learners. " +
	"Create clear, concise summaries using simple words, short sentences, and concrete examples. " +
	"Use visual language and break complex ideas into digestible chunks."

const imagePromptSystemPrompt = "You are an expert at creating visual learning prompts. " +
	"Create detailed, educational image prompts that help dyslexic learners understand concepts through visual metaphors."

func summaryUserPrompt(text string) string {
	return "Adapt this educational content for dyslexic learners. Make it visual, concrete, and easy to understand:\n\n" + text
}

func imagePromptUserPrompt(summary string) string {
	return "Create a detailed image generation prompt for an educational illustration that helps explain this concept:\n\n" +
		summary +
		"\n\nThe image should be clear, colorful, and visually explain the key ideas."
}
