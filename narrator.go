package main

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const narratorSystemPrompt = `You are the narrator of a werewolf party game set in a remote village. Given a game event, announce it to the players in 1-2 atmospheric sentences. Be gothic and dramatic. Never reveal hidden roles or hint at who holds them.`

// Narrator turns phase boundaries and deaths into flavor text. A nil
// Narrator is the disabled state: only the factual fallback line goes out.
type Narrator struct {
	llm      llms.Model
	callOpts []llms.CallOption
}

// NewNarrator sets up the narrator from config. Returns nil when no
// provider is configured or initialization fails.
func NewNarrator(cfg AppConfig) *Narrator {
	var opts []llms.CallOption
	if cfg.NarratorTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.NarratorTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Narrator: temperature=%.2f", f)
		} else {
			log.Printf("Narrator: invalid temperature %q: %v", cfg.NarratorTemperature, err)
		}
	}

	switch cfg.NarratorProvider {
	case "ollama":
		llm, err := ollama.New(ollama.WithModel(cfg.NarratorModel), ollama.WithServerURL(cfg.NarratorOllamaURL))
		if err != nil {
			log.Printf("Narrator: failed to init Ollama (%s at %s): %v", cfg.NarratorModel, cfg.NarratorOllamaURL, err)
			return nil
		}
		log.Printf("Narrator: Ollama model=%s url=%s", cfg.NarratorModel, cfg.NarratorOllamaURL)
		return &Narrator{llm: llm, callOpts: opts}
	case "openai":
		llm, err := openai.New(openai.WithModel(cfg.NarratorModel))
		if err != nil {
			log.Printf("Narrator: failed to init OpenAI (%s): %v", cfg.NarratorModel, err)
			return nil
		}
		log.Printf("Narrator: OpenAI model=%s", cfg.NarratorModel)
		return &Narrator{llm: llm, callOpts: opts}
	case "claude":
		llm, err := anthropic.New(anthropic.WithModel(cfg.NarratorModel))
		if err != nil {
			log.Printf("Narrator: failed to init Claude (%s): %v", cfg.NarratorModel, err)
			return nil
		}
		log.Printf("Narrator: Claude model=%s", cfg.NarratorModel)
		return &Narrator{llm: llm, callOpts: opts}
	case "openai-compatible":
		if cfg.NarratorURL == "" {
			log.Printf("Narrator: narrator_url is required for openai-compatible provider")
			return nil
		}
		llmOpts := []openai.Option{openai.WithModel(cfg.NarratorModel), openai.WithBaseURL(cfg.NarratorURL)}
		if cfg.NarratorAPIKey != "" {
			llmOpts = append(llmOpts, openai.WithToken(cfg.NarratorAPIKey))
		}
		llm, err := openai.New(llmOpts...)
		if err != nil {
			log.Printf("Narrator: failed to init openai-compatible (%s at %s): %v", cfg.NarratorModel, cfg.NarratorURL, err)
			return nil
		}
		log.Printf("Narrator: openai-compatible model=%s url=%s", cfg.NarratorModel, cfg.NarratorURL)
		return &Narrator{llm: llm, callOpts: opts}
	default:
		log.Printf("Narrator: disabled (set narrator_provider to enable)")
		return nil
	}
}

// Announce publishes the factual announcement immediately and, when a
// provider is configured, follows up with generated flavor text. The
// pipeline never waits on the model.
func (n *Narrator) Announce(t Transport, groupID, event, fallback string) {
	publishAnnouncement(t, groupID, fallback)

	if n == nil || n.llm == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		messages := []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, narratorSystemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, "Event: "+event),
		}
		resp, err := n.llm.GenerateContent(ctx, messages, n.callOpts...)
		if err != nil {
			log.Printf("Narrator: generation failed: %v", err)
			return
		}
		if len(resp.Choices) == 0 {
			return
		}
		text := strings.TrimSpace(resp.Choices[0].Content)
		if text != "" {
			publishAnnouncement(t, groupID, text)
		}
	}()
}

func publishAnnouncement(t Transport, groupID, text string) {
	payload, err := json.Marshal(map[string]any{"type": "announcement", "text": text})
	if err != nil {
		logError("publishAnnouncement: marshal", err)
		return
	}
	t.Publish(groupID, payload, nil)
}
