package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/policyradar/data/db/radar.db"
	}
	if cfg.Embedding.Namespace == "" {
		cfg.Embedding.Namespace = "minilm_384"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1200
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.MaxChunks == 0 {
		cfg.RAG.MaxChunks = 500
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.OverfetchFactor == 0 {
		cfg.RAG.OverfetchFactor = 10
	}
	if cfg.RAG.OverfetchLimit == 0 {
		cfg.RAG.OverfetchLimit = 500
	}
}
