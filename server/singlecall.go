package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aigateway/gateway/classify"
	"github.com/aigateway/gateway/failover"
	"github.com/aigateway/gateway/provider"
	"github.com/aigateway/gateway/workflow"
)

// handleChat serves POST /text and /chat: a single text-category call
// through the failover executor, streamed back as raw chunks (spec
// §6.1). The single-call endpoints are thin wrappers over the executor
// and reuse the same input transformer the workflow driver uses for a
// text step's literal input.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.streamChat(w, r, provider.Text)
}

// handleVision serves POST /vision: identical to handleChat but against
// the vision category, so the request body may additionally carry
// image_url fields on its messages.
func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	s.streamChat(w, r, provider.Vision)
}

func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, category provider.Category) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	input, err := decodeChatInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid JSON body", "", string(classify.InvalidRequest))
		return
	}

	messages, err := workflow.InputToChatMessages(input)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	exec := failover.New[provider.ChatProvider, <-chan provider.Chunk](s.registry, category, s.retry, s.logger)
	chunks, service, err := exec.Execute(r.Context(), func(ctx context.Context, p provider.ChatProvider) (<-chan provider.Chunk, error) {
		return p.Stream(ctx, messages)
	})
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "InternalError", "streaming unsupported", service, "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-AI-Service", service)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range chunks {
		if chunk.Err != nil {
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", mustJSON(map[string]string{"message": chunk.Err.Error()}))
			flusher.Flush()
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]string{"text": chunk.Text}))
		flusher.Flush()
	}
}

// handleImage serves POST /image: JSON response {urls[], revised_prompt?,
// metadata?, service} (spec §6.1).
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	raw, err := decodeCategoryInput[provider.ImageInput](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid JSON body", "", string(classify.InvalidRequest))
		return
	}
	input, err := workflow.InputToImageInput(raw)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	exec := failover.New[provider.ImageProvider, provider.ImageResult](s.registry, provider.Image, s.retry, s.logger)
	result, service, err := exec.Execute(r.Context(), func(ctx context.Context, p provider.ImageProvider) (provider.ImageResult, error) {
		return p.Generate(ctx, input)
	})
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		provider.ImageResult
		Service string `json:"service"`
	}{result, service})
}

// handleVideo serves POST /video: JSON response per category result
// plus service (spec §6.1).
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	raw, err := decodeCategoryInput[provider.VideoInput](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid JSON body", "", string(classify.InvalidRequest))
		return
	}
	input, err := workflow.InputToVideoInput(raw)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	exec := failover.New[provider.VideoProvider, provider.VideoResult](s.registry, provider.Video, s.retry, s.logger)
	result, service, err := exec.Execute(r.Context(), func(ctx context.Context, p provider.VideoProvider) (provider.VideoResult, error) {
		return p.Generate(ctx, input)
	})
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		provider.VideoResult
		Service string `json:"service"`
	}{result, service})
}

// handleAudio serves POST /audio: JSON response per category result plus
// service (spec §6.1).
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	raw, err := decodeCategoryInput[provider.AudioInput](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid JSON body", "", string(classify.InvalidRequest))
		return
	}
	input, err := workflow.InputToAudioInput(raw)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	exec := failover.New[provider.AudioProvider, provider.AudioResult](s.registry, provider.Audio, s.retry, s.logger)
	result, service, err := exec.Execute(r.Context(), func(ctx context.Context, p provider.AudioProvider) (provider.AudioResult, error) {
		return p.Generate(ctx, input)
	})
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		provider.AudioResult
		Service string `json:"service"`
	}{result, service})
}

// chatRequestBody is the object shape accepted for /text, /chat, /vision
// in addition to a bare JSON string: either a literal "input" string or a
// pre-built "messages" array (spec §4.6's inputToChatMessages).
type chatRequestBody struct {
	Input    string             `json:"input"`
	Messages []provider.Message `json:"messages"`
}

// decodeChatInput reads the request body and returns either a string or a
// []provider.Message, matching workflow.InputToChatMessages' accepted
// shapes. A bare JSON string body is honored directly; otherwise the body
// is parsed as chatRequestBody, preferring an explicit messages array.
func decodeChatInput(r *http.Request) (interface{}, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var body chatRequestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	if len(body.Messages) > 0 {
		return body.Messages, nil
	}
	return body.Input, nil
}

// decodeCategoryInput reads the request body for a structured category
// (image/video/audio), accepting either a bare JSON string (the prompt/
// input text) or the category's typed JSON object shape.
func decodeCategoryInput[T any](r *http.Request) (interface{}, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var typed T
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, err
	}
	return typed, nil
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
