// Package clu recognizes intents with an Azure AI Language conversational
// language understanding deployment.
package clu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/resilience"
)

const defaultAPIVersion = "2023-04-01"

type Config struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Project    string        `mapstructure:"project"`
	Deployment string        `mapstructure:"deployment"`
	APIVersion string        `mapstructure:"api_version"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

type Adapter struct {
	cfg    Config
	retry  resilience.RetryPolicy
	Client *http.Client
}

// statusError is a non-2xx answer other than a rate limit.
type statusError struct {
	code int
	body string
}

func (e statusError) Error() string {
	return fmt.Sprintf("clu: status %d: %s", e.code, e.body)
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("clu: endpoint and api_key are required")
	}
	if cfg.Project == "" || cfg.Deployment == "" {
		return nil, errors.New("clu: project and deployment are required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	retry := resilience.NewRetryPolicy(cfg.MaxRetries, cfg.Backoff)
	if cfg.MaxRetries == 0 {
		retry.MaxRetries = 1
	}
	retry.Retryable = retryable
	return &Adapter{
		cfg:    cfg,
		retry:  retry,
		Client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// retryable skips rate limits and client errors; the caller falls back to
// keywords instead.
func retryable(err error) bool {
	if resilience.IsRateLimit(err) {
		return false
	}
	var se statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

func (a *Adapter) Name() string { return "clu" }

type analyzeRequest struct {
	Kind          string        `json:"kind"`
	AnalysisInput analysisInput `json:"analysisInput"`
	Parameters    parameters    `json:"parameters"`
}

type analysisInput struct {
	ConversationItem conversationItem `json:"conversationItem"`
}

type conversationItem struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participantId"`
	Text          string `json:"text"`
	Language      string `json:"language,omitempty"`
}

type parameters struct {
	ProjectName     string `json:"projectName"`
	DeploymentName  string `json:"deploymentName"`
	StringIndexType string `json:"stringIndexType"`
}

type analyzeResponse struct {
	Result struct {
		Prediction struct {
			TopIntent string `json:"topIntent"`
			Entities  []struct {
				Category        string  `json:"category"`
				Text            string  `json:"text"`
				ConfidenceScore float64 `json:"confidenceScore"`
			} `json:"entities"`
		} `json:"prediction"`
	} `json:"result"`
}

func (a *Adapter) Recognize(ctx context.Context, text, locale string) (nlu.Result, error) {
	body, err := a.buildRequest(text, locale)
	if err != nil {
		return nlu.Result{}, err
	}
	var res nlu.Result
	err = a.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = a.analyze(ctx, body)
		return err
	})
	if err != nil {
		return nlu.Result{}, errorsx.Wrap(err, errorsx.ReasonNLURecognize)
	}
	return res, nil
}

func (a *Adapter) analyze(ctx context.Context, body []byte) (nlu.Result, error) {
	url := a.cfg.Endpoint + "/language/:analyze-conversations?api-version=" + a.cfg.APIVersion
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nlu.Result{}, err
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return nlu.Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nlu.Result{}, resilience.RateLimitError{Provider: "clu", Message: string(msg)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nlu.Result{}, statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	var payload analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nlu.Result{}, err
	}
	pred := payload.Result.Prediction
	res := nlu.Result{TopIntent: pred.TopIntent}
	for _, e := range pred.Entities {
		res.Entities = append(res.Entities, nlu.Entity{Category: e.Category, Text: e.Text})
	}
	return res, nil
}

func (a *Adapter) buildRequest(text, locale string) ([]byte, error) {
	lang, _, _ := strings.Cut(locale, "-")
	req := analyzeRequest{
		Kind: "Conversation",
		AnalysisInput: analysisInput{ConversationItem: conversationItem{
			ID:            "1",
			ParticipantID: "user",
			Text:          text,
			Language:      strings.ToLower(lang),
		}},
		Parameters: parameters{
			ProjectName:     a.cfg.Project,
			DeploymentName:  a.cfg.Deployment,
			StringIndexType: "TextElement_V8",
		},
	}
	return json.Marshal(req)
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.APIKey)
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

var _ nlu.Recognizer = (*Adapter)(nil)
