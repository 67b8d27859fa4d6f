package config

import "fmt"

// validate runs structural checks across the loaded configuration.
// A hand-rolled validator is used deliberately, not a reflection-based
// struct-tag library: the checks below are cross-field (e.g. a provider
// name referenced from Defaults must exist in the registry), which a
// generic tag validator cannot express.
func validate(cfg *Config) error {
	if cfg.Defaults.LLMProvider != "" && !cfg.LLMProviderRegistry.Has(cfg.Defaults.LLMProvider) {
		return NewValidationError("defaults", "llm_provider", "",
			fmt.Errorf("%w: %s", ErrLLMProviderNotFound, cfg.Defaults.LLMProvider))
	}

	for name, provider := range cfg.LLMProviderRegistry.GetAll() {
		if err := validateLLMProvider(name, provider); err != nil {
			return err
		}
	}

	if cfg.Defaults.ScoringConcurrencyCap < 1 {
		return NewValidationError("defaults", "scoring_concurrency_cap", "",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if cfg.Defaults.OCRPageLimit < 1 {
		return NewValidationError("defaults", "ocr_page_limit", "",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}

	return nil
}

func validateLLMProvider(name string, provider *LLMProviderConfig) error {
	if !provider.Type.IsValid() {
		return NewValidationError("llm_provider", name, "type",
			fmt.Errorf("%w: %s", ErrInvalidValue, provider.Type))
	}
	if provider.Model == "" {
		return NewValidationError("llm_provider", name, "model", ErrMissingRequiredField)
	}
	if provider.MaxOutputTokens < 256 {
		return NewValidationError("llm_provider", name, "max_output_tokens",
			fmt.Errorf("%w: must be at least 256", ErrInvalidValue))
	}
	return nil
}
