package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/zapvendas/bot-server-go/internal/model"
)

// FallbackReply is returned whenever the remote model cannot produce an
// answer. The responder contract is that Generate never fails.
const FallbackReply = "Desculpe, não consegui processar sua mensagem agora. Pode tentar novamente em instantes?"

const systemPrompt = `Você é um atendente virtual de uma loja, respondendo clientes pelo WhatsApp.
Seja cordial, direto e responda em no máximo três frases.
Nunca invente produtos, preços ou condições que não foram informados.`

type Client struct {
	client  *genai.Client
	chat    *genai.GenerativeModel
	embed   *genai.EmbeddingModel
	timeout time.Duration
}

func NewClient(ctx context.Context, apiKey, chatModel, embeddingModel string, timeout time.Duration) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	chat := client.GenerativeModel(chatModel)
	chat.SetTemperature(0.7)

	return &Client{
		client:  client,
		chat:    chat,
		embed:   client.EmbeddingModel(embeddingModel),
		timeout: timeout,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Generate produces reply text for a user question, grounded on the matched
// catalog record when one exists. It always returns text: remote failures
// are logged and converted to FallbackReply.
func (c *Client) Generate(ctx context.Context, question string, record *model.RetrievedRecord) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.GenerateContent(ctx, genai.Text(buildPrompt(question, record)))
	if err != nil {
		log.Error().Err(err).Msg("gemini generate failed, using fallback reply")
		return FallbackReply
	}
	return replyFromResponse(resp)
}

// replyFromResponse extracts usable text from a model response, falling back
// when the response carries no candidates or only empty text.
func replyFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Warn().Msg("gemini returned no candidates, using fallback reply")
		return FallbackReply
	}

	reply := strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]))
	if reply == "" {
		return FallbackReply
	}
	return reply
}

// Embed returns the embedding vector for a text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.embed.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed content: empty embedding")
	}
	return res.Embedding.Values, nil
}

func buildPrompt(question string, record *model.RetrievedRecord) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")

	if record != nil {
		b.WriteString("Produto encontrado no catálogo:\n")
		fmt.Fprintf(&b, "- Nome: %s\n", record.Name)
		fmt.Fprintf(&b, "- Descrição: %s\n", record.Description)
		fmt.Fprintf(&b, "- Preço: R$ %.2f\n", record.Price)
		b.WriteString("\nResponda a pergunta do cliente usando essas informações.\n")
	} else {
		b.WriteString("Nenhum produto do catálogo corresponde à pergunta.\n")
		b.WriteString("Diga educadamente que não encontrou o item e ofereça ajuda com outra busca.\n")
	}

	b.WriteString("\nPergunta do cliente: ")
	b.WriteString(question)
	return b.String()
}
