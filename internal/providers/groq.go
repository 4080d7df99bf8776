package providers

// GroqProvider supports LLM generation via Groq's OpenAI-compatible API.
type GroqProvider struct {
	*chatClient
}

func NewGroqProvider(keyName string) *GroqProvider {
	apiKey := resolveKey("PAPERLENS_GROQ_KEY_", keyName, "GROQ_API_KEY")
	return &GroqProvider{
		chatClient: newChatClient("groq", keyName, apiKey, "https://api.groq.com/openai/v1", envOr("PAPERLENS_GROQ_MODEL", "llama-3.1-8b-instant")),
	}
}
