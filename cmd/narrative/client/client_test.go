package client_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencohort/ukbdecode/cmd/narrative/client"
)

func stubCompletion(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestGenerate(t *testing.T) {
	result := `{"narrative":"A 52 year old male participant.","qa":[{"q":"q1","a":"a1"}],"used_fields":["age_3","sex_7"]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		fmt.Fprint(w, stubCompletion(result))
	}))
	defer server.Close()

	t.Setenv("NARRATIVE_API_URL", server.URL)
	t.Setenv("NARRATIVE_API_KEY", "test-key")
	t.Setenv("NARRATIVE_MODEL", "test-model")

	c := client.NewNarrativeApiClient()
	res, err := c.Generate("- age_3: 52\n- sex_7: male", 1)
	require.NoError(t, err)

	assert.Equal(t, "A 52 year old male participant.", res.Narrative)
	require.Len(t, res.QA, 1)
	assert.Equal(t, client.QAPair{Q: "q1", A: "a1"}, res.QA[0])
	assert.Equal(t, []string{"age_3", "sex_7"}, res.UsedFields)
}

func TestGenerateFencedJSON(t *testing.T) {
	fenced := "```json\n{\"narrative\":\"n\",\"qa\":[],\"used_fields\":[]}\n```"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, stubCompletion(fenced))
	}))
	defer server.Close()

	t.Setenv("NARRATIVE_API_URL", server.URL)

	res, err := client.NewNarrativeApiClient().Generate("- no_facts: none", 0)
	require.NoError(t, err)
	assert.Equal(t, "n", res.Narrative)
}

func TestGenerateRejectsNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, stubCompletion("I cannot answer that."))
	}))
	defer server.Close()

	t.Setenv("NARRATIVE_API_URL", server.URL)

	_, err := client.NewNarrativeApiClient().Generate("- a: b", 1)
	assert.Error(t, err)
}
