package mock

import (
	"context"
	"strings"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
)

type NLUConfig struct {
	// Results maps an utterance (case-insensitive) to its recognition.
	Results map[string]nlu.Result
	// Default answers every other utterance; empty means enterInformation.
	Default nlu.Result
	Err     error
}

type Recognizer struct {
	cfg NLUConfig
}

func NewNLU(cfg NLUConfig) *Recognizer {
	if cfg.Default.TopIntent == "" {
		cfg.Default.TopIntent = nlu.IntentEnterInformation
	}
	results := make(map[string]nlu.Result, len(cfg.Results))
	for k, v := range cfg.Results {
		results[strings.ToLower(strings.TrimSpace(k))] = v
	}
	cfg.Results = results
	return &Recognizer{cfg: cfg}
}

func (r *Recognizer) Name() string { return "mock_nlu" }

func (r *Recognizer) Recognize(ctx context.Context, text, locale string) (nlu.Result, error) {
	if r.cfg.Err != nil {
		return nlu.Result{}, r.cfg.Err
	}
	if res, ok := r.cfg.Results[strings.ToLower(strings.TrimSpace(text))]; ok {
		return res, nil
	}
	return r.cfg.Default, nil
}

var _ nlu.Recognizer = (*Recognizer)(nil)
