package translator

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-resty/resty/v2"
)

const googleBaseURL = "https://translation.googleapis.com"

// Google calls the Cloud Translation v2 REST API.
type Google struct {
	http    *resty.Client
	apiKey  string
	baseURL string
}

func NewGoogle(httpc *resty.Client, apiKey, baseURL string) *Google {
	if baseURL == "" {
		baseURL = googleBaseURL
	}
	return &Google{http: httpc, apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *Google) Translate(ctx context.Context, text, source, target string) (string, error) {
	body := map[string]any{
		"q":      []string{text},
		"target": target,
		"format": "text",
	}
	if source != "" {
		body["source"] = source
	}
	var resp struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	rr, err := g.http.R().SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetHeader("Content-Type", "application/json").
		ForceContentType("application/json").
		SetBody(body).
		SetResult(&resp).
		Post(g.baseURL + "/language/translate/v2")
	if err != nil {
		return "", err
	}
	if rr.IsError() {
		return "", fmt.Errorf("google translate: %s; body: %s", rr.Status(), abbreviate(rr.String(), 500))
	}
	if len(resp.Data.Translations) == 0 {
		return "", fmt.Errorf("google translate: no translations returned")
	}
	return html.UnescapeString(resp.Data.Translations[0].TranslatedText), nil
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
