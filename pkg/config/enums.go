package config

// LLMProviderType defines supported LLM providers for the gateway.
type LLMProviderType string

const (
	// LLMProviderTypeVertexAI is Google Vertex AI.
	LLMProviderTypeVertexAI LLMProviderType = "vertexai"
	// LLMProviderTypeOpenAI is OpenAI API or an OpenAI-compatible endpoint.
	LLMProviderTypeOpenAI LLMProviderType = "openai"
	// LLMProviderTypeAnthropic is Anthropic Claude API.
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
)

// IsValid checks if the LLM provider type is valid.
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeVertexAI, LLMProviderTypeOpenAI, LLMProviderTypeAnthropic:
		return true
	default:
		return false
	}
}
