package config

// Defaults contains system-wide default configurations applied to every
// pipeline run unless a caller overrides them at submission time.
type Defaults struct {
	// LLM provider used by every agent unless a run specifies otherwise.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// Sampling temperature for agent calls. The spec calls for deterministic,
	// low-temperature grading, so this defaults low (see DefaultConfig()).
	Temperature float64 `yaml:"temperature,omitempty" validate:"omitempty,min=0,max=2"`

	// MaxLLMRetries bounds the transport retry loop (exponential backoff).
	MaxLLMRetries int `yaml:"max_llm_retries,omitempty" validate:"omitempty,min=0"`

	// MaxRepairAttempts bounds the schema-repair loop, kept separate from
	// the transport retry loop.
	MaxRepairAttempts int `yaml:"max_repair_attempts,omitempty" validate:"omitempty,min=0"`

	// OCRPageLimit is the maximum number of pages a single upload may contain.
	OCRPageLimit int `yaml:"ocr_page_limit,omitempty" validate:"omitempty,min=1"`

	// ScoringConcurrencyCap bounds the number of criteria scored in parallel
	// for a single question.
	ScoringConcurrencyCap int `yaml:"scoring_concurrency_cap,omitempty" validate:"omitempty,min=1"`

	// TokenBudgetPerEvaluation is the cumulative input+output token ceiling
	// for one evaluation run_id, tracked in Redis. A first evaluation shares
	// one run_id across every question of a script; a re-evaluation uses a
	// fresh run_id for a single script answer.
	TokenBudgetPerEvaluation int `yaml:"token_budget_per_evaluation,omitempty" validate:"omitempty,min=1"`

	// MarksGranularity is the smallest increment a Scoring agent may award.
	// The field is loaded but not read: Scoring validation uses a fixed step
	// of 0.25 and rejects awards that are not a multiple of it (no rounding).
	MarksGranularity float64 `yaml:"marks_granularity,omitempty" validate:"omitempty,min=0"`
}

// DefaultConfig returns the built-in system defaults, overridable per field
// by the loaded YAML.
func DefaultConfig() *Defaults {
	return &Defaults{
		Temperature:              0.1,
		MaxLLMRetries:            3,
		MaxRepairAttempts:        1,
		OCRPageLimit:             40,
		ScoringConcurrencyCap:    4,
		TokenBudgetPerEvaluation: 50_000,
		MarksGranularity:         0.25,
	}
}
