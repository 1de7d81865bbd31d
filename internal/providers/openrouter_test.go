package providers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestOpenRouterListModelsMarksFreeModels(t *testing.T) {
	withKeys(t, map[string]string{"openrouter": "or-key"})

	p := NewOpenRouter("", "")
	p.Client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "https://openrouter.ai/api/v1/models", r.URL.String())
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, openRouterReferer, r.Header.Get("HTTP-Referer"))
		assert.Equal(t, openRouterTitle, r.Header.Get("X-Title"))
		return jsonResponse(http.StatusOK,
			`{"data":[{"id":"meta-llama/llama-3.1-8b-instruct:free","pricing":{"prompt":"0"}},{"id":"openai/gpt-4o","pricing":{"prompt":"0.000005"}},{"id":" "}]}`), nil
	})}

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"meta-llama/llama-3.1-8b-instruct:free [free]", "openai/gpt-4o"}, models)
}

func TestOpenRouterListModelsUnauthorized(t *testing.T) {
	withKeys(t, map[string]string{"openrouter": "bad-key"})

	p := NewOpenRouter("", "")
	p.Client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, ""), nil
	})}

	_, err := p.ListModels(context.Background())
	var authErr *ProviderAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "openrouter", authErr.ProviderName)
}
