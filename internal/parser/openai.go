package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"

	"renoquote/api/internal/quote"
)

const editSystemPrompt = `You convert a contractor's spoken edit request into JSON edit commands for a renovation quote.
Return a JSON object: {"commands": [...]}. Each command is one of:
  {"type":"change_price","target":"<keyword from an item description>","newPrice":<number>,"confidence":<0..1>}
  {"type":"add_item","description":"<new line item>","unitPrice":<number>,"quantity":<number>,"unit":"<each|hour|ft|job>","category":"<labor|material|fixtures|repairs|other>","confidence":<0..1>}
  {"type":"remove_item","target":"<keyword>","confidence":<0..1>}
  {"type":"bulk_change","operation":"<add_percentage|subtract_percentage|set_flat>","value":<number>,"scope":"<all|category>","category":"<when scope is category>","confidence":<0..1>}
Use keywords the current items actually contain. If the message contains no edit, return {"commands":[]}.`

const extractSystemPrompt = `You convert a contractor's spoken job description into a renovation quote draft.
Return a JSON object:
  {"items":[{"description":"...","quantity":<number>,"unit":"<each|hour|ft|job>","unitPrice":<number>,"category":"<labor|material|fixtures|repairs|other>","confidenceScore":<0..1>}],
   "customerName":"","customerPhone":"","customerAddress":"","customerEmail":"","projectDescription":"","confidence":<0..1>}
Only include items with a billable price. If nothing billable is described, return {"items":[]}.`

// OpenAI implements CommandParser, Extractor and Transcriber against the
// OpenAI API. All methods honor the fail-soft contract of this package.
type OpenAI struct {
	client openai.Client
	model  string
	http   *http.Client
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(ooption.WithAPIKey(apiKey)),
		model:  model,
		http:   http.DefaultClient,
	}
}

func (o *OpenAI) Parse(ctx context.Context, transcript string, items []quote.Item) []quote.EditCommand {
	payload := fmt.Sprintf("Current items:\n%s\n\nContractor said:\n%s", serializeItems(items), transcript)
	raw, err := o.complete(ctx, editSystemPrompt, payload)
	if err != nil {
		log.Printf("parser: edit completion failed: %v", err)
		return nil
	}
	return quote.DecodeCommands([]byte(raw))
}

func (o *OpenAI) Extract(ctx context.Context, transcript string) Extraction {
	raw, err := o.complete(ctx, extractSystemPrompt, transcript)
	if err != nil {
		log.Printf("parser: extraction completion failed: %v", err)
		return Extraction{}
	}

	var ex Extraction
	if err := json.Unmarshal([]byte(raw), &ex); err != nil {
		log.Printf("parser: malformed extraction response: %v", err)
		return Extraction{}
	}

	kept := ex.Items[:0]
	for _, it := range ex.Items {
		if strings.TrimSpace(it.Description) == "" || it.UnitPrice < 0 {
			continue
		}
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		if it.Unit == "" {
			it.Unit = "each"
		}
		if it.Category == "" {
			it.Category = quote.CategoryOther
		}
		it.Recalc()
		kept = append(kept, it)
	}
	ex.Items = kept
	return ex
}

// Transcribe downloads the voice note and runs Whisper over it.
func (o *OpenAI) Transcribe(ctx context.Context, audioURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("build audio request: %w", err)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch audio: unexpected status %d", resp.StatusCode)
	}

	transcription, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(resp.Body, "voice-note.ogg", "audio/ogg"),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return transcription.Text, nil
}

// complete runs one json_object response and returns the raw output text.
func (o *OpenAI) complete(ctx context.Context, instructions, input string) (string, error) {
	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(o.model),
		MaxOutputTokens: openai.Int(2048),
		Instructions:    openai.String(instructions),
		Input:           oresponses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	obj := oshared.NewResponseFormatJSONObjectParam()
	params.Text = oresponses.ResponseTextConfigParam{
		Format: oresponses.ResponseFormatTextConfigUnionParam{OfJSONObject: &obj},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", fmt.Errorf("empty model output")
	}
	return text, nil
}

func serializeItems(items []quote.Item) string {
	type promptItem struct {
		Description string  `json:"description"`
		Quantity    float64 `json:"quantity"`
		Unit        string  `json:"unit"`
		UnitPrice   float64 `json:"unitPrice"`
		Category    string  `json:"category"`
	}
	out := make([]promptItem, 0, len(items))
	for _, it := range items {
		out = append(out, promptItem{it.Description, it.Quantity, it.Unit, it.UnitPrice, it.Category})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(b)
}
