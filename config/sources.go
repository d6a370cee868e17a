package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SourcesConfig describes where listings come from and how webhook
// deliveries are attributed to a source.
type SourcesConfig struct {
	Known     []string          `yaml:"known" validate:"required,min=1,dive,required"`
	Keywords  []string          `yaml:"keywords" validate:"required,min=1,dive,required"`
	Webhooks  map[string]string `yaml:"webhooks" validate:"required,dive,required"`
	ListLimit int               `yaml:"list_limit" validate:"gte=1,lte=10000"`
}

// DefaultWebhookSource is the source recorded for deliveries on the bare
// webhook path.
const DefaultWebhookSource = "facebook"

func DefaultSources() *SourcesConfig {
	return &SourcesConfig{
		Known: []string{"komornik", "e_licytacje", "elicytacje", "facebook", "amw"},
		Keywords: []string{
			"sprzedaż",
			"sprzedam",
			"do sprzedania",
			"cena",
			"zł",
			"pln",
			"licytacja",
			"nieruchomość",
			"mieszkanie",
			"dom",
			"działka",
		},
		Webhooks:  map[string]string{"": DefaultWebhookSource},
		ListLimit: 2000,
	}
}

// LoadSources reads the YAML sources file. A missing file yields the
// defaults; fields absent from the file keep their default values.
func LoadSources(path string) (*SourcesConfig, error) {
	sources := DefaultSources()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sources, nil
		}
		return nil, fmt.Errorf("read sources config: %w", err)
	}

	var file SourcesConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources config %s: %w", path, err)
	}

	if len(file.Known) > 0 {
		sources.Known = lowerAll(file.Known)
	}
	if len(file.Keywords) > 0 {
		sources.Keywords = lowerAll(file.Keywords)
	}
	for slug, source := range file.Webhooks {
		sources.Webhooks[strings.ToLower(slug)] = strings.ToLower(source)
	}
	if file.ListLimit > 0 {
		sources.ListLimit = file.ListLimit
	}

	if err := validator.New().Struct(sources); err != nil {
		return nil, fmt.Errorf("invalid sources config %s: %w", path, err)
	}
	return sources, nil
}

// WebhookSource maps a webhook path slug to the source tag recorded on
// ingested listings.
func (s *SourcesConfig) WebhookSource(slug string) (string, bool) {
	source, ok := s.Webhooks[strings.ToLower(slug)]
	return source, ok
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}
