package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const googleBaseURL = "https://speech.googleapis.com"

// Google calls the Cloud Speech-to-Text v1 recognize endpoint with LINEAR16 audio.
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

type googleWord struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Word      string `json:"word"`
}

type googleResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string       `json:"transcript"`
			Confidence float64      `json:"confidence"`
			Words      []googleWord `json:"words"`
		} `json:"alternatives"`
		ResultEndTime string `json:"resultEndTime"`
	} `json:"results"`
}

func (g *Google) Recognize(ctx context.Context, pcm []byte, language string, sampleRate int) ([]Result, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	body := map[string]any{
		"config": map[string]any{
			"encoding":                   "LINEAR16",
			"sampleRateHertz":            sampleRate,
			"languageCode":               language,
			"enableWordTimeOffsets":      true,
			"enableAutomaticPunctuation": true,
		},
		"audio": map[string]string{"content": base64.StdEncoding.EncodeToString(pcm)},
	}
	var resp googleResponse
	rr, err := g.http.R().SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetHeader("Content-Type", "application/json").
		ForceContentType("application/json").
		SetBody(body).
		SetResult(&resp).
		Post(g.baseURL + "/v1/speech:recognize")
	if err != nil {
		return nil, err
	}
	if rr.IsError() {
		body := rr.String()
		if len(body) > 500 {
			body = body[:500]
		}
		return nil, fmt.Errorf("google speech: %s; body: %s", rr.Status(), body)
	}

	out := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		res := Result{Transcript: text, Confidence: alt.Confidence}
		for _, w := range alt.Words {
			res.Words = append(res.Words, Word{
				Word:  w.Word,
				Start: parseOffset(w.StartTime),
				End:   parseOffset(w.EndTime),
			})
		}
		if len(res.Words) > 0 {
			res.Offset = res.Words[0].Start
		}
		out = append(out, res)
	}
	SortByOffset(out)
	return out, nil
}

// parseOffset reads the API's duration strings ("1.300s"). Bad input is zero.
func parseOffset(s string) time.Duration {
	s = strings.TrimSuffix(strings.TrimSpace(s), "s")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
