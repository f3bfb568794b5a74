package advisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/kawaltani/kawaltani/internal/metrics"
	"github.com/kawaltani/kawaltani/internal/models"
	"github.com/kawaltani/kawaltani/internal/phase"
	"github.com/kawaltani/kawaltani/internal/status"
)

// Advisory sources.
const (
	SourceOpenAI = "openai"
	SourceCache  = "cache"
	SourceRules  = "rules"
)

const systemPrompt = `Anda adalah penyuluh pertanian padi. Berdasarkan peringatan sensor lahan, ` +
	`tulis saran singkat dan praktis dalam bahasa Indonesia untuk petani. ` +
	`Gunakan paling banyak lima poin. Jangan mengulang angka sensor.`

// Advisory is a short piece of advice for the current warnings.
type Advisory struct {
	Text        string
	Source      string
	GeneratedAt time.Time
}

// Advisor turns active warnings into advice. Without an API key it falls
// back to the backend's own action messages.
type Advisor struct {
	client  openai.Client
	enabled bool
	model   openai.ChatModel
	cache   *Cache
}

// New creates an advisor. apiKey may be empty, in which case only rule
// based advice is produced. cache may be nil.
func New(apiKey string, cache *Cache, opts ...option.RequestOption) *Advisor {
	a := &Advisor{
		model: openai.ChatModelGPT4oMini,
		cache: cache,
	}
	if apiKey == "" {
		log.Println("advisor: OPENAI_API_KEY not set, using rule based advice")
		return a
	}
	a.client = openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	a.enabled = true
	return a
}

func (a *Advisor) Enabled() bool {
	return a.enabled
}

// Advise returns advice for warnings, optionally in the context of the
// crop's growth phase. Generated text is cached per warning set; when
// generation fails the rule based advice is returned with the error.
func (a *Advisor) Advise(ctx context.Context, warnings []models.Warning, growth *phase.Phase) (Advisory, error) {
	if len(warnings) == 0 || !a.enabled {
		metrics.AdvisoriesGenerated.WithLabelValues(SourceRules).Inc()
		return Rules(warnings, growth), nil
	}

	key := Key(warnings)
	if growth != nil {
		key += "_" + string(growth.Key)
	}
	if a.cache != nil {
		if text, at, ok := a.cache.Get(key); ok {
			metrics.AdvisoriesGenerated.WithLabelValues(SourceCache).Inc()
			return Advisory{Text: text, Source: SourceCache, GeneratedAt: at}, nil
		}
	}

	text, err := a.generate(ctx, warnings, growth)
	if err != nil {
		metrics.AdvisoriesGenerated.WithLabelValues(SourceRules).Inc()
		return Rules(warnings, growth), err
	}
	if a.cache != nil {
		if err := a.cache.Set(key, text); err != nil {
			log.Printf("advisor: cache advisory: %v", err)
		}
	}
	metrics.AdvisoriesGenerated.WithLabelValues(SourceOpenAI).Inc()
	return Advisory{Text: text, Source: SourceOpenAI, GeneratedAt: time.Now()}, nil
}

func (a *Advisor) generate(ctx context.Context, warnings []models.Warning, growth *phase.Phase) (string, error) {
	var b strings.Builder
	if growth != nil {
		fmt.Fprintf(&b, "Fase tanaman: %s (%s)\n", growth.Title, growth.Range)
	}
	b.WriteString("Peringatan sensor:\n")
	for _, w := range warnings {
		fmt.Fprintf(&b, "- [%s] %s: %s. Tindakan: %s\n", w.Severity.Label(), w.SensorLabel, w.StatusMessage, w.ActionMessage)
	}

	log.Printf("advisor: generating advice for %d warnings", len(warnings))
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(b.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("advice generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no advice returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty advice returned")
	}
	return text, nil
}

// Rules builds advice from the warnings' own action messages, most severe
// first, followed by the phase's fertilizer recommendation.
func Rules(warnings []models.Warning, growth *phase.Phase) Advisory {
	var lines []string
	for _, pass := range []bool{true, false} {
		for _, w := range warnings {
			if (w.Severity == status.Danger) != pass {
				continue
			}
			action := w.ActionMessage
			if action == "" || action == "-" {
				action = w.StatusMessage
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", w.SensorLabel, action))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "Semua sensor dalam kondisi normal.")
	}
	if growth != nil {
		lines = append(lines, fmt.Sprintf("%s: %s", growth.Title, growth.Fertilizer))
	}
	return Advisory{Text: strings.Join(lines, "\n"), Source: SourceRules, GeneratedAt: time.Now()}
}
