package providers

import (
	"fmt"
	"os"
)

// Settings selects and parameterizes a provider. Endpoint, deployment and
// model fall back to the reserved environment variables so schedulers can
// run without a config file. API keys are never part of Settings.
type Settings struct {
	Provider   string // "azure-openai" (default) or "anthropic"
	Endpoint   string
	Deployment string
	Model      string
	APIVersion string
}

// New builds the configured provider.
func New(s Settings) (Provider, error) {
	switch s.Provider {
	case "", "azure-openai":
		endpoint := s.Endpoint
		if endpoint == "" {
			endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
		deployment := s.Deployment
		if deployment == "" {
			deployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		}
		if endpoint == "" || deployment == "" {
			return nil, fmt.Errorf("azure-openai: endpoint and deployment are required (config agents.llm or AZURE_OPENAI_ENDPOINT / AZURE_OPENAI_DEPLOYMENT)")
		}
		opts := []AzureOption{WithAzureAPIVersion(s.APIVersion)}
		if s.Model != "" {
			opts = append(opts, WithAzureModel(s.Model))
		}
		return NewAzureOpenAIProvider(endpoint, deployment, opts...), nil

	case "anthropic":
		model := s.Model
		if model == "" {
			model = os.Getenv("ANTHROPIC_MODEL")
		}
		var opts []AnthropicOption
		if model != "" {
			opts = append(opts, WithAnthropicModel(model))
		}
		if s.Endpoint != "" {
			opts = append(opts, WithAnthropicBaseURL(s.Endpoint))
		}
		return NewAnthropicProvider(opts...), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: azure-openai, anthropic)", s.Provider)
	}
}
