// Client for the remote text-generation service that writes patient
// narratives and Q/A pairs from decoded records. The service is consumed
// through a plain chat-completion request/response contract; everything it
// may not do (inventing facts, loose output) is pushed into the prompt.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/opencohort/ukbdecode/util"
)

const systemPrompt = `You are a medical data summarization assistant.
Rules:
- Use ONLY the provided facts (fields and values) from the input. Do NOT add external knowledge, assumptions, or invented details.
- The narrative must be concise, professional, and written in a clinical style. Integrate multiple fields if possible, but never add facts not explicitly present.
- Q/A pairs must:
  * Be grounded strictly in the provided facts.
  * Avoid trivial one-to-one lookups (e.g., "What is the patient's age?").
  * Prefer questions that combine or compare multiple fields, as long as those fields exist.
  * Do NOT ask about fields that are not present.
- If some information is missing, state "unknown/not recorded" without speculation.
- Return STRICT JSON with the exact keys requested.`

const userTemplate = `Given the following structured patient facts from a record, produce in one step:
1) A concise professional clinical narrative in English, integrating as many relevant facts as possible into one coherent paragraph. The narrative must not introduce any information not explicitly listed in the facts.
2) %[1]d Q/A pairs. Each question must:
   - Be based ONLY on the provided facts.
   - Avoid trivial questions that just restate a single field.
   - Focus on relationships, comparisons, or contextual meaning between the fields that exist.
   - Provide answers strictly from the given facts; if the answer is not available, say "unknown/not recorded".
3) Return STRICT JSON with this shape:
{"narrative": "<one paragraph clinical narrative>", "qa": [{"q":"...","a":"..."}, ... %[1]d items], "used_fields": ["list the field names you used, ordered by importance"]}

[FACTS] (use ONLY these, never invent or assume anything beyond them):
%[2]s`

// QAPair is one generated question/answer.
type QAPair struct {
	Q string `json:"q"`
	A string `json:"a"`
}

// Result is the strict-JSON payload the service must return.
type Result struct {
	Narrative  string   `json:"narrative"`
	QA         []QAPair `json:"qa"`
	UsedFields []string `json:"used_fields"`
}

// NarrativeApiClient talks to a chat-completion endpoint.
type NarrativeApiClient struct {
	BaseURI    string
	HTTPClient *http.Client
	apiKey     string
	model      string
}

// NewNarrativeApiClient builds a client from the environment:
// NARRATIVE_API_URL, NARRATIVE_API_KEY, NARRATIVE_MODEL.
func NewNarrativeApiClient() *NarrativeApiClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil
	retryClient.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	return &NarrativeApiClient{
		BaseURI:    strings.TrimSuffix(os.Getenv("NARRATIVE_API_URL"), "/"),
		HTTPClient: retryClient.StandardClient(),
		apiKey:     os.Getenv("NARRATIVE_API_KEY"),
		model:      os.Getenv("NARRATIVE_MODEL"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate asks the service for a narrative plus qaCount Q/A pairs over the
// given facts block.
func (c *NarrativeApiClient) Generate(facts string, qaCount int) (*Result, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userTemplate, qaCount, facts)},
		},
		Temperature: util.Float64Ptr(0.2),
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURI+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	result, err := extractJSONObject(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return result, nil
}

var fencedJSONPattern = regexp.MustCompile("(?si)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSONObject parses the model output, tolerating a fenced code block
// around the JSON object.
func extractJSONObject(content string) (*Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return &result, nil
	}
	if m := fencedJSONPattern.FindStringSubmatch(content); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &result); err == nil {
			return &result, nil
		}
	}
	return nil, fmt.Errorf("service did not return a parseable JSON object")
}
