package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// hostPersonaPrompt frames every reply as a two-host educational podcast.
const hostPersonaPrompt = "You are two co-hosts on an educational podcast discussing a topic in depth. " +
	"Host A is clear, concise, and provides factual explanations; Host B is friendly, humorous, and adds relatable examples. " +
	"Always refer back to each other by name ('Host A: …', 'Host B: …')."

// OpenAIClient implements Transcriber, Responder and Synthesizer against the
// OpenAI HTTP API. TTS may use a separate key so speech quota is isolated
// from chat and transcription.
type OpenAIClient struct {
	HTTPClient   *http.Client
	BaseURL      string
	APIKey       string
	TTSAPIKey    string
	ChatModel    string
	WhisperModel string
	TTSModel     string
	TTSVoice     string
}

func NewOpenAIClient(apiKey, ttsAPIKey, chatModel, whisperModel, ttsModel, ttsVoice string) *OpenAIClient {
	if ttsAPIKey == "" {
		ttsAPIKey = apiKey
	}
	return &OpenAIClient{
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
		BaseURL:      defaultBaseURL,
		APIKey:       apiKey,
		TTSAPIKey:    ttsAPIKey,
		ChatModel:    chatModel,
		WhisperModel: whisperModel,
		TTSModel:     ttsModel,
		TTSVoice:     ttsVoice,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type speechRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

// Transcribe uploads the clip to the Whisper endpoint as a multipart form.
func (c *OpenAIClient) Transcribe(ctx context.Context, clip []byte) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("openai api key missing")
	}
	if len(clip) == 0 {
		return "", fmt.Errorf("empty audio clip")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "clip.webm")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(clip); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", c.WhisperModel); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whisper error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	return strings.TrimSpace(tr.Text), nil
}

// Respond continues the two-host discussion for a learner question asked
// mid-lesson in the named module.
func (c *OpenAIClient) Respond(ctx context.Context, transcript, moduleName string) (string, error) {
	user := fmt.Sprintf("Module: %s\nLearner asked: %s\nContinue the discussion.", moduleName, transcript)
	return c.chat(ctx, user, 300, 0)
}

// ComposeLesson generates a full lesson dialogue for a topic.
func (c *OpenAIClient) ComposeLesson(ctx context.Context, topic string) (string, error) {
	user := fmt.Sprintf("Module Topic: %s\nCreate a 2-3 minute dialogue as Host A and Host B explaining this topic in an engaging and educational manner. Start by introducing the topic.", topic)
	return c.chat(ctx, user, 800, 0.7)
}

func (c *OpenAIClient) chat(ctx context.Context, userContent string, maxTokens int, temperature float64) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("openai api key missing")
	}
	messages := []chatMessage{
		{Role: "system", Content: hostPersonaPrompt},
		{Role: "user", Content: userContent},
	}
	reqBody, _ := json.Marshal(chatCompletionsRequest{
		Model:       c.ChatModel,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// Synthesize converts text to speech and returns the MP3 bytes.
func (c *OpenAIClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.TTSAPIKey == "" {
		return nil, fmt.Errorf("openai tts api key missing")
	}
	input := strings.TrimSpace(text)
	if input == "" {
		input = "I apologize, but I need more information to provide a helpful response."
	}
	reqBody, _ := json.Marshal(speechRequest{Model: c.TTSModel, Voice: c.TTSVoice, Input: input})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/speech", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.TTSAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts error: status=%d body=%s", resp.StatusCode, string(b))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts: empty audio body")
	}
	return audio, nil
}
