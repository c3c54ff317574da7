package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
)

const systemPrompt = `You translate live meeting captions. Reply with JSON only: {"translation": "<text>"}. ` +
	`Keep the meaning and tone, do not add explanations.`

// Ollama asks a local chat model for a JSON-formatted translation.
type Ollama struct {
	http    *resty.Client
	baseURL string
	model   string
}

func NewOllama(httpc *resty.Client, baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{http: httpc, baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

func (o *Ollama) Translate(ctx context.Context, text, source, target string) (string, error) {
	body := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": fmt.Sprintf("Translate from %s to %s:\n%s", source, target, text)},
		},
		"stream":  false,
		"format":  "json",
		"options": map[string]any{"temperature": 0},
	}
	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	rr, err := o.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		ForceContentType("application/json").
		SetBody(body).
		SetResult(&resp).
		Post(o.baseURL + "/api/chat")
	if err != nil {
		return "", err
	}
	if rr.IsError() {
		return "", fmt.Errorf("ollama translate: %s; body: %s", rr.Status(), abbreviate(rr.String(), 500))
	}
	return extractTranslation(strings.TrimSpace(resp.Message.Content))
}

var translationRE = regexp.MustCompile(`(?s)"translation"\s*:\s*"(.*?)"`)

// extractTranslation accepts strict JSON, JSON inside a code fence, or a
// "translation" field that only a regex can find.
func extractTranslation(content string) (string, error) {
	s := content
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := strings.TrimPrefix(s[idx+3:], "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	var obj struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj.Translation != "" {
		return obj.Translation, nil
	}
	if m := translationRE.FindStringSubmatch(s); len(m) == 2 {
		return strings.ReplaceAll(m[1], `\"`, `"`), nil
	}
	return "", fmt.Errorf("no translation in model output: %s", abbreviate(s, 200))
}
