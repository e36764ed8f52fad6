package cmd

import "github.com/spf13/viper"

func settingDefaultConfig() {
	// Enable automatic environment variable binding
	viper.AutomaticEnv()

	// Map environment variables to Viper keys for Groq
	viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	viper.BindEnv("groq.model", "GROQ_MODEL")
	viper.BindEnv("groq.temperature", "GROQ_TEMPERATURE")

	// Map environment variables to Viper keys for Ollama and Weaviate
	viper.BindEnv("ollama.url", "OLLAMA_URL")
	viper.BindEnv("ollama.embedding_model", "OLLAMA_EMBEDDING_MODEL")
	viper.BindEnv("weaviate.url", "WEAVIATE_URL")
	viper.BindEnv("weaviate.class", "WEAVIATE_CLASS")
	viper.BindEnv("vectorstore.backend", "VECTORSTORE_BACKEND")

	// Map environment variables to Viper keys for the pipeline
	viper.BindEnv("documents.path", "DOCUMENTS_PATH")
	viper.BindEnv("chunking.size", "CHUNK_SIZE")
	viper.BindEnv("chunking.overlap", "CHUNK_OVERLAP")
	viper.BindEnv("retrieval.k", "RETRIEVAL_K")
	viper.BindEnv("retrieval.threshold", "RETRIEVAL_THRESHOLD")
	viper.BindEnv("retrieval.batch_size", "RETRIEVAL_BATCH_SIZE")

	// Map environment variables to Viper keys for the server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Set default values for Groq
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")
	viper.SetDefault("groq.temperature", 0.7)

	// Set default values for Ollama and Weaviate
	viper.SetDefault("ollama.url", "http://localhost:11434/api")
	viper.SetDefault("ollama.embedding_model", "nomic-embed-text")
	viper.SetDefault("weaviate.url", "localhost:8080")
	viper.SetDefault("weaviate.class", "DocumentChunk")
	viper.SetDefault("vectorstore.backend", "weaviate")

	// Set default values for the pipeline
	viper.SetDefault("documents.path", "./documents")
	viper.SetDefault("chunking.size", 1000)
	viper.SetDefault("chunking.overlap", 200)
	viper.SetDefault("retrieval.k", 4)
	viper.SetDefault("retrieval.threshold", 0.0)
	viper.SetDefault("retrieval.batch_size", 50)

	// Set default values for the server
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdown_timeout", "5s")
}
