package config

import (
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "CVMATCH"

const (
	EmbeddingProviderHuggingFace = "huggingface"
	EmbeddingProviderGemini      = "gemini"

	DefaultHuggingFaceModel   = "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"
	DefaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"
	DefaultGeminiEmbedModel   = "text-embedding-004"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 0)
	v.SetDefault("ai.temperature", 0.01)
	v.SetDefault("ai.maxOutputTokens", 1500)
	v.SetDefault("ai.useSystemPrompts", true)

	// Extraction is near-deterministic
	v.SetDefault("ai.extractCV.temperature", 0.01)
	v.SetDefault("ai.extractCV.maxOutputTokens", 1500)
	v.SetDefault("ai.extractJob.temperature", 0.01)
	v.SetDefault("ai.extractJob.maxOutputTokens", 1500)

	v.SetDefault("ai.personalInfo.temperature", 0.1)
	v.SetDefault("ai.personalInfo.maxOutputTokens", 256)

	v.SetDefault("ai.coverLetter.temperature", 0.3)
	v.SetDefault("ai.coverLetter.maxOutputTokens", 1500)
	v.SetDefault("ai.coverLetter.timeout", 60*time.Second)

	// CV optimisation rewrites sections and must not invent content
	v.SetDefault("ai.optimizeCV.temperature", 0.01)
	v.SetDefault("ai.optimizeCV.maxOutputTokens", 1500)
	v.SetDefault("ai.optimizeCV.timeout", 60*time.Second)

	for _, key := range []string{"extractCV", "extractJob", "personalInfo", "coverLetter", "optimizeCV"} {
		setCircuitBreakerDefaults(v, "ai."+key+".circuitBreaker")
	}

	// Embedding
	v.SetDefault("embedding.provider", EmbeddingProviderHuggingFace)
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.baseURL", DefaultHuggingFaceBaseURL)
	v.SetDefault("embedding.apiKey", "")
	v.SetDefault("embedding.timeout", 20*time.Second)
	setCircuitBreakerDefaults(v, "embedding.circuitBreaker")

	// Embedding cache
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.capacity", 512)
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.ttl", 24*time.Hour)
	v.SetDefault("cache.redis.keyPrefix", "cvmatch:emb:")

	// Matching
	v.SetDefault("matching.threshold", 0.5)
	v.SetDefault("matching.parallel", true)

	// Impact factors are estimates; set them to 0 to stop estimating
	v.SetDefault("impact.energyPerKTokens", 0.0005)
	v.SetDefault("impact.carbonIntensity", 0.052)

	// Job source
	v.SetDefault("jobSource.timeout", 30*time.Second)
	v.SetDefault("jobSource.userAgent", "cvmatch/1.0 (+https://github.com/cvmatch)")
	v.SetDefault("jobSource.maxRetries", 2)
	v.SetDefault("jobSource.allowPrivate", false)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.watchPrompts", false)
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "yaml", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 5*1024*1024) // 5MB

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.watchInterval", "0s")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.embeddingKey", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "cvmatch")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackImpact", true)
	v.SetDefault("observability.customMetrics.businessMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackSuccessRates", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackContentSizes", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackCache", true)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}

func setCircuitBreakerDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".enabled", true)
	v.SetDefault(prefix+".maxRequests", 3)
	v.SetDefault(prefix+".interval", 60*time.Second)
	v.SetDefault(prefix+".timeout", 60*time.Second)
	v.SetDefault(prefix+".minRequests", 3)
	v.SetDefault(prefix+".failureThreshold", 0.6)
}
