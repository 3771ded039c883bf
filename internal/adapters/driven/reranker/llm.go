// Package reranker provides second-stage relevance scoring over
// retrieved candidates: an LLM judge and a hosted rerank API client.
package reranker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Ensure the interfaces are implemented.
var (
	_ driven.Reranker  = (*LLMReranker)(nil)
	_ driven.LLMBacked = (*LLMReranker)(nil)
)

// relevancePrompt asks for a strict boolean judgement so the answer
// parses without a grammar.
const relevancePrompt = `Given a question and a document, decide whether the document contains information relevant to answering the question.
Answer with exactly one word: "true" or "false".

Question: %s

Document:
%s

Answer:`

// LLMReranker filters candidates by asking a language model to judge
// each one's relevance to the query. Candidates judged irrelevant are
// dropped; the relative order of the survivors is preserved. A failed
// judgement keeps the candidate rather than discarding it.
type LLMReranker struct {
	llm driven.LLMService
}

// NewLLMReranker creates a reranker backed by the given LLM service.
func NewLLMReranker(llm driven.LLMService) *LLMReranker {
	return &LLMReranker{llm: llm}
}

// LLMBacked reports that this reranker makes one model call per
// candidate.
func (r *LLMReranker) LLMBacked() bool { return true }

// Rerank judges every candidate concurrently and returns the relevant
// ones in their original order.
func (r *LLMReranker) Rerank(ctx context.Context, chunks []domain.RetrievedChunk, query string) ([]domain.RetrievedChunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	keep := make([]bool, len(chunks))
	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keep[i] = r.judge(ctx, chunks[i].Text, query)
		}(i)
	}
	wg.Wait()

	result := make([]domain.RetrievedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		if keep[i] {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// judge asks the model for a true/false relevance verdict. Anything
// other than a clear "false" keeps the candidate.
func (r *LLMReranker) judge(ctx context.Context, text, query string) bool {
	prompt := fmt.Sprintf(relevancePrompt, query, text)
	answer, err := r.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   5,
		Temperature: 0,
	})
	if err != nil {
		return true
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "false")
}
