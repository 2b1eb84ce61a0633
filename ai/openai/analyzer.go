// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/docscope/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	analysisPrompt = "Analyze this image and describe what you see. " +
		"Include any text, charts, diagrams, or important visual elements."
	analysisMaxTokens = 500
)

// ImageAnalyzer implements ai.ImageAnalyzer using a vision-capable chat model.
type ImageAnalyzer struct {
	client llms.Model
	logger *slog.Logger
}

// newImageAnalyzer is an internal constructor that returns the concrete type.
func newImageAnalyzer(config *ai.Config) (*ImageAnalyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.VisionEnabled() {
		return nil, errors.New("openai: vision model not configured")
	}

	client, err := openai.New(clientOptions(config, config.VisionHost,
		openai.WithModel(config.VisionModel))...)
	if err != nil {
		return nil, err
	}

	return &ImageAnalyzer{
		client: client,
		logger: slog.Default().With("component", "openai-analyzer"),
	}, nil
}

// NewImageAnalyzer creates a new image analyzer using the provided configuration.
//
// Returns ai.ImageAnalyzer interface to enforce abstraction.
func NewImageAnalyzer(config *ai.Config) (ai.ImageAnalyzer, error) {
	return newImageAnalyzer(config)
}

// AnalyzeImage asks the vision model to describe the image.
func (a *ImageAnalyzer) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(analysisPrompt),
				llms.BinaryPart(mimeType, data),
			},
		},
	}

	response, err := a.client.GenerateContent(ctx, content, llms.WithMaxTokens(analysisMaxTokens))
	if err != nil {
		a.logger.Error("failed to analyze image", "bytes", len(data), "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		a.logger.Debug("no choices returned from model")
		return "", nil
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}
