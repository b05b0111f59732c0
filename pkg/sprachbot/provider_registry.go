package sprachbot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
	"github.com/harunnryd/sprachbot/pkg/adapters/stt"
	"github.com/harunnryd/sprachbot/pkg/adapters/tts"
	"github.com/harunnryd/sprachbot/pkg/dialogue"
)

type STTFactory func(cfg Config) (stt.Transcriber, error)
type TTSFactory func(cfg Config) (tts.Synthesizer, error)
type NLUFactory func(cfg Config) (nlu.Recognizer, error)
type StoreFactory func(cfg Config) (dialogue.Persister, error)

// ProviderRegistry maps provider names from the config to constructors.
type ProviderRegistry struct {
	stt   map[string]STTFactory
	tts   map[string]TTSFactory
	nlu   map[string]NLUFactory
	store map[string]StoreFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt:   make(map[string]STTFactory),
		tts:   make(map[string]TTSFactory),
		nlu:   make(map[string]NLUFactory),
		store: make(map[string]StoreFactory),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterNLU(name string, factory NLUFactory) {
	r.nlu[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterStore(name string, factory StoreFactory) {
	r.store[providerKey(name)] = factory
}

// BuildSTT returns nil without error when provider is empty.
func (r *ProviderRegistry) BuildSTT(provider string, cfg Config) (stt.Transcriber, error) {
	if providerKey(provider) == "" {
		return nil, nil
	}
	fn := r.stt[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s (known: %s)", provider, known(r.stt))
	}
	return fn(cfg)
}

// BuildTTS returns nil without error when provider is empty.
func (r *ProviderRegistry) BuildTTS(provider string, cfg Config) (tts.Synthesizer, error) {
	if providerKey(provider) == "" {
		return nil, nil
	}
	fn := r.tts[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s (known: %s)", provider, known(r.tts))
	}
	return fn(cfg)
}

// BuildNLU returns nil without error when provider is empty.
func (r *ProviderRegistry) BuildNLU(provider string, cfg Config) (nlu.Recognizer, error) {
	if providerKey(provider) == "" {
		return nil, nil
	}
	fn := r.nlu[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("nlu provider not registered: %s (known: %s)", provider, known(r.nlu))
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildStore(provider string, cfg Config) (dialogue.Persister, error) {
	fn := r.store[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("store provider not registered: %s (known: %s)", provider, known(r.store))
	}
	return fn(cfg)
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func known[T any](m map[string]T) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
