package config

// Config holds lexocr configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server     ServerCfg     `mapstructure:"server" yaml:"server"`
	Pipeline   PipelineCfg   `mapstructure:"pipeline" yaml:"pipeline"`
	Engines    EnginesCfg    `mapstructure:"engines" yaml:"engines"`
	Refine     RefineCfg     `mapstructure:"refine" yaml:"refine"`
	OCRService OCRServiceCfg `mapstructure:"ocr_service" yaml:"ocr_service"`
	Analysis   AnalysisCfg   `mapstructure:"analysis" yaml:"analysis"`
}

// ServerCfg configures the HTTP API server.
type ServerCfg struct {
	Addr string `mapstructure:"addr" yaml:"addr"` // listen address, e.g. ":8787"
}

// PipelineCfg controls the extraction run.
type PipelineCfg struct {
	MaxWorkers         int  `mapstructure:"max_workers" yaml:"max_workers"`                   // page worker pool size, 0 = NumCPU
	PageTimeoutSeconds int  `mapstructure:"page_timeout_seconds" yaml:"page_timeout_seconds"` // per-page deadline across both engines
	RefineEnabled      bool `mapstructure:"refine_enabled" yaml:"refine_enabled"`
}

// EnginesCfg configures the OCR engines.
type EnginesCfg struct {
	Fast   FastEngineCfg   `mapstructure:"fast" yaml:"fast"`
	Robust RobustEngineCfg `mapstructure:"robust" yaml:"robust"`
}

// FastEngineCfg configures local tesseract.
type FastEngineCfg struct {
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// RobustEngineCfg configures the remote recognition service.
type RobustEngineCfg struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// RefineCfg configures the grammar correction backend.
type RefineCfg struct {
	Backend         string `mapstructure:"backend" yaml:"backend"` // "openai"
	Model           string `mapstructure:"model" yaml:"model"`
	APIKey          string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	ParagraphBudget int    `mapstructure:"paragraph_budget" yaml:"paragraph_budget"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// OCRServiceCfg holds the recognition service container configuration.
type OCRServiceCfg struct {
	// Managed controls whether lexocr starts and stops the container
	// itself. When false, base_url must point at an already-running
	// service.
	Managed bool `mapstructure:"managed" yaml:"managed"`
	// ContainerName is the Docker container name (default: lexocr-easyocr)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 8765)
	Port string `mapstructure:"port" yaml:"port"`
}

// AnalysisCfg configures the optional document analysis service used
// for classification, entity tagging, and summaries.
type AnalysisCfg struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Addr: ":8787",
		},
		Pipeline: PipelineCfg{
			MaxWorkers:         0,
			PageTimeoutSeconds: 120,
			RefineEnabled:      true,
		},
		Engines: EnginesCfg{
			Fast: FastEngineCfg{
				Languages: []string{"fra", "eng"},
			},
			Robust: RobustEngineCfg{
				Enabled:        true,
				BaseURL:        "http://localhost:8765",
				TimeoutSeconds: 90,
				MaxRetries:     3,
			},
		},
		Refine: RefineCfg{
			Backend:         "openai",
			Model:           "gpt-4o-mini",
			APIKey:          "${OPENAI_API_KEY}",
			ParagraphBudget: 5,
			TimeoutSeconds:  10,
		},
		OCRService: OCRServiceCfg{
			Managed:       false,
			ContainerName: "lexocr-easyocr",
			Image:         "lexsuite/easyocr-service:latest",
			Port:          "8765",
		},
		Analysis: AnalysisCfg{
			Enabled:        false,
			BaseURL:        "http://localhost:8790",
			TimeoutSeconds: 30,
			MaxRetries:     2,
		},
	}
}
