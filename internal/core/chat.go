package core

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrorFragmentPrefix marks the terminal fragment emitted when a chat stream fails
const ErrorFragmentPrefix = "Error: "

// IsErrorFragment reports whether a fragment is the terminal error marker
func IsErrorFragment(fragment string) bool {
	return strings.HasPrefix(fragment, ErrorFragmentPrefix)
}

// PromptProcessor cleans a prompt before it is sent upstream
type PromptProcessor interface {
	ProcessText(text string, maxSize int) string
}

// ChatRelay forwards prompts to the configured chat provider
type ChatRelay struct {
	client        ChatClient
	processor     PromptProcessor
	maxPromptSize int
	logger        *zap.Logger
}

// NewChatRelay creates a new chat relay
func NewChatRelay(client ChatClient, processor PromptProcessor, maxPromptSize int, logger *zap.Logger) *ChatRelay {
	return &ChatRelay{
		client:        client,
		processor:     processor,
		maxPromptSize: maxPromptSize,
		logger:        logger,
	}
}

// Relay returns the lazily produced completion for a turn. The sequence can be
// ranged over once. Upstream failures never escape as errors: the sequence ends
// with a single fragment starting with ErrorFragmentPrefix instead.
func (r *ChatRelay) Relay(ctx context.Context, turn *ChatTurn) iter.Seq[string] {
	var consumed atomic.Bool

	return func(yield func(string) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}

		prompt := turn.Prompt
		if r.processor != nil {
			prompt = r.processor.ProcessText(prompt, r.maxPromptSize)
		}
		processed := &ChatTurn{Prompt: prompt, Image: turn.Image, ImageMIME: turn.ImageMIME}

		stopped := false
		fragments := 0
		err := r.client.StreamChat(ctx, processed, func(fragment string) bool {
			if fragment == "" {
				return true
			}
			fragments++
			if !yield(fragment) {
				stopped = true
				return false
			}
			return true
		})

		if err == nil || stopped {
			r.logger.Debug("Chat stream finished", zap.Int("fragments", fragments))
			return
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			r.logger.Debug("Chat stream cancelled by client", zap.Int("fragments", fragments))
			return
		}

		r.logger.Error("Chat stream failed", zap.Error(err), zap.Int("fragments", fragments))
		yield(ErrorFragmentPrefix + err.Error())
	}
}
