package llm

import (
	"encoding/base64"
	"fmt"

	"github.com/spherical/pdf-ocr/internal/domain"
)

// ChatRequest is the OpenAI-compatible chat completion request. Messages are
// provider shaped, see messageBuilders.
type ChatRequest struct {
	Model    string `json:"model"`
	Messages []any  `json:"messages"`
	Stream   bool   `json:"stream,omitempty"`
}

// Message represents a chat message with multi-part content
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// ImagesMessage is the flat shape with a text prompt and raw base64 images.
type ImagesMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type pageImage struct {
	dataURL string
	base64  string
}

type messageBuilder func(img pageImage, prompt string) any

// messageBuilders is the only place that knows how providers differ.
var messageBuilders = map[domain.ProviderKind]messageBuilder{
	domain.ProviderOpenAI: func(img pageImage, prompt string) any {
		return Message{Role: "user", Content: []ContentPart{
			{Type: "input_image", ImageURL: &ImageURL{URL: img.dataURL}},
			{Type: "input_text", Text: prompt},
		}}
	},
	domain.ProviderSiliconFlow: func(img pageImage, prompt string) any {
		return Message{Role: "user", Content: []ContentPart{
			{Type: "image_url", ImageURL: &ImageURL{URL: img.dataURL}},
			{Type: "text", Text: prompt},
		}}
	},
	domain.ProviderOllama:    imagesMessage,
	domain.ProviderAnthropic: imagesMessage,
}

func imagesMessage(img pageImage, prompt string) any {
	return ImagesMessage{Role: "user", Content: prompt, Images: []string{img.base64}}
}

// BuildRequest shapes the chat request for one page according to kind.
func BuildRequest(kind domain.ProviderKind, model string, page domain.PageTask, prompt string, stream bool) (*ChatRequest, error) {
	build, ok := messageBuilders[kind]
	if !ok {
		return nil, domain.ConfigError(fmt.Sprintf("no request shape for provider kind %q", kind), nil)
	}

	mediaType := page.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	encoded := base64.StdEncoding.EncodeToString(page.Payload)

	return &ChatRequest{
		Model:    model,
		Messages: []any{build(pageImage{dataURL: "data:" + mediaType + ";base64," + encoded, base64: encoded}, prompt)},
		Stream:   stream,
	}, nil
}
