package config

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.MaxOutputTokens == nil {
		maxTokens := c.AI.MaxOutputTokens
		opCfg.MaxOutputTokens = &maxTokens
	}
	if opCfg.UseSystemPrompts == nil {
		useSystem := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &useSystem
	}
}

// operationBlock returns the configured block of op
func (c *Config) operationBlock(op Operation) *OperationAIConfig {
	switch op {
	case OpExtractCV:
		return &c.AI.ExtractCV
	case OpExtractJob:
		return &c.AI.ExtractJob
	case OpPersonalInfo:
		return &c.AI.PersonalInfo
	case OpCoverLetter:
		return &c.AI.CoverLetter
	case OpOptimizeCV:
		return &c.AI.OptimizeCV
	}
	return &OperationAIConfig{}
}

// GetOperationConfig returns the AI configuration of op with fallback to the global values
func (c *Config) GetOperationConfig(op Operation) OperationAIConfig {
	cfg := *c.operationBlock(op)
	c.applyOperationDefaults(&cfg)
	return cfg
}

// GetExtractCVConfig returns the configuration for CV extraction
func (c *Config) GetExtractCVConfig() OperationAIConfig {
	return c.GetOperationConfig(OpExtractCV)
}

// GetExtractJobConfig returns the configuration for job posting extraction
func (c *Config) GetExtractJobConfig() OperationAIConfig {
	return c.GetOperationConfig(OpExtractJob)
}

// GetPersonalInfoConfig returns the configuration for personal information extraction
func (c *Config) GetPersonalInfoConfig() OperationAIConfig {
	return c.GetOperationConfig(OpPersonalInfo)
}

// GetCoverLetterConfig returns the configuration for cover letter generation
func (c *Config) GetCoverLetterConfig() OperationAIConfig {
	return c.GetOperationConfig(OpCoverLetter)
}

// GetOptimizeCVConfig returns the configuration for CV optimisation
func (c *Config) GetOptimizeCVConfig() OperationAIConfig {
	return c.GetOperationConfig(OpOptimizeCV)
}

// GetEmbeddingConfig returns the embedding configuration with provider specific defaults
func (c *Config) GetEmbeddingConfig() EmbeddingConfig {
	cfg := c.Embedding
	switch cfg.Provider {
	case EmbeddingProviderGemini:
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiEmbedModel
		}
		if cfg.APIKey == "" {
			cfg.APIKey = c.AI.APIKey
		}
	default:
		if cfg.Model == "" {
			cfg.Model = DefaultHuggingFaceModel
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultHuggingFaceBaseURL
		}
	}
	return cfg
}

// operationPrompts returns the prompt overrides configured for op
func (c *Config) operationPrompts(op Operation) PromptConfig {
	return c.operationBlock(op).Prompts
}
