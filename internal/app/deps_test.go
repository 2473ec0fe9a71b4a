package app

import (
	"testing"

	"lyricdesk/internal/config"
)

func TestAIModel(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.AIConfig
		wantBackend string
		wantModel   string
	}{
		{"DefaultGemini", config.AIConfig{}, "gemini", ""},
		{"GeminiWithModel", config.AIConfig{ModuleName: "gemini", Model: "gemini-2.0-pro"}, "gemini", "gemini-2.0-pro"},
		{"OpenAIWithModel", config.AIConfig{ModuleName: "openai", Model: "gpt-4o"}, "openai", "gpt-4o"},
		{"LegacyModelInModuleName", config.AIConfig{ModuleName: "deepseek-chat"}, "openai", "deepseek-chat"},
		{"ModelOverridesLegacyName", config.AIConfig{ModuleName: "deepseek-chat", Model: "deepseek-reasoner"}, "openai", "deepseek-reasoner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, model := aiModel(tt.cfg)
			if backend != tt.wantBackend || model != tt.wantModel {
				t.Errorf("aiModel(%+v) = %q, %q, want %q, %q", tt.cfg, backend, model, tt.wantBackend, tt.wantModel)
			}
		})
	}
}
