package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Retriever is the retrieval collaborator for policy questions. Ranking
// and relevance are its problem; this side only forwards queries.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
}

// HTTPRetriever posts {"query","top_k"} and expects {"passages":[...]}.
type HTTPRetriever struct {
	URL  string
	HTTP *http.Client
}

func (r *HTTPRetriever) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	body, err := json.Marshal(map[string]any{"query": query, "top_k": topK})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpc := r.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("retrieval read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieval status %d", resp.StatusCode)
	}
	var out struct {
		Passages []string `json:"passages"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("retrieval decode: %w", err)
	}
	return out.Passages, nil
}

// Lookup forwards the question and formats the passages. The fallback
// messages for "nothing found" and "service down" belong to the caller
// of the retriever, not the retriever itself.
func Lookup(ctx context.Context, r Retriever, question string, topK int) (string, error) {
	passages, err := r.Retrieve(ctx, question, topK)
	if err != nil {
		return "", err
	}
	if len(passages) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("Relevant rental rules:\n")
	for _, p := range passages {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String(), nil
}
