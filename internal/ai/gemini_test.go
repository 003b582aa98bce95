package ai

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"

	"github.com/zapvendas/bot-server-go/internal/model"
)

func TestBuildPrompt(t *testing.T) {
	t.Run("includes catalog record when matched", func(t *testing.T) {
		record := &model.RetrievedRecord{
			Name:        "Tênis Runner",
			Description: "Tênis leve para corrida de rua",
			Price:       299.9,
		}

		prompt := buildPrompt("tem tênis de corrida?", record)

		assert.Contains(t, prompt, "Tênis Runner")
		assert.Contains(t, prompt, "Tênis leve para corrida de rua")
		assert.Contains(t, prompt, "R$ 299.90")
		assert.Contains(t, prompt, "tem tênis de corrida?")
		assert.NotContains(t, prompt, "Nenhum produto")
	})

	t.Run("instructs a polite miss when nothing matched", func(t *testing.T) {
		prompt := buildPrompt("tem geladeira?", nil)

		assert.Contains(t, prompt, "Nenhum produto do catálogo corresponde")
		assert.Contains(t, prompt, "tem geladeira?")
		assert.NotContains(t, prompt, "Produto encontrado")
	})

	t.Run("question comes after the instructions", func(t *testing.T) {
		prompt := buildPrompt("qual o preço?", nil)

		assert.Contains(t, prompt, "Pergunta do cliente: qual o preço?")
	})
}

func TestReplyFromResponse(t *testing.T) {
	t.Run("returns trimmed candidate text", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("  Temos sim!  ")}},
			}},
		}

		assert.Equal(t, "Temos sim!", replyFromResponse(resp))
	})

	t.Run("falls back when there are no candidates", func(t *testing.T) {
		assert.Equal(t, FallbackReply, replyFromResponse(&genai.GenerateContentResponse{}))
	})

	t.Run("falls back when the candidate has no content", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}

		assert.Equal(t, FallbackReply, replyFromResponse(resp))
	})

	t.Run("falls back when the text is blank", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("   ")}},
			}},
		}

		assert.Equal(t, FallbackReply, replyFromResponse(resp))
	})
}
