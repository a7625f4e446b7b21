// ABOUTME: Voice-note handling: save the audio, transcribe it when a provider
// ABOUTME: is wired and route obvious product-issue complaints into that flow

package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inauguralar/atende-gateway/internal/store"
)

// Transcriber turns a voice note into text. The engine works without one;
// the placeholder transcript is stored instead.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mime string) (string, error)
}

// transcriptPlaceholder is stored when no transcription provider is wired up
// or the provider fails.
const transcriptPlaceholder = "[Áudio recebido - transcrição não implementada]"

// issueTerms flag a voice note as a likely product complaint.
var issueTerms = []string{"defeito", "quebrado", "problema", "nao funciona", "estragado"}

// handleAudio saves the voice note and, when a transcript is available, runs
// it through the conversation as if the customer had typed it. A transcript
// that clearly describes a broken product short-circuits into the
// product-issue flow instead.
func (e *Engine) handleAudio(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if e.uploads != nil && len(msg.MediaData) > 0 {
		name := msg.MediaName
		if name == "" {
			name = fmt.Sprintf("audio_%s_%d.ogg", strings.TrimSuffix(msg.From, "@c.us"), time.Now().Unix())
		}
		if _, err := e.uploads.Save(ctx, name, msg.MediaData); err != nil {
			e.logger.Warn("saving voice note failed", "user", msg.From, "error", err)
		}
	}

	transcript, ok := e.transcribe(ctx, msg)
	st.Data.AudioTranscript = transcript
	if !ok {
		return Result{
			Response: "🎤 Recebemos seu áudio! No momento não conseguimos ouvir mensagens de voz.\n\nPor favor, escreva sua mensagem em texto para que eu possa ajudar. 😊",
			Next:     Step(st.Step),
		}, nil
	}

	normalized := Normalize(transcript)
	for _, term := range issueTerms {
		if strings.Contains(normalized, term) {
			res := productIssuePrompt(st)
			res.Response = "🎤 Entendi pelo seu áudio que há um problema com um produto.\n\n" + res.Response
			return res, nil
		}
	}

	text := msg
	text.Body = transcript
	text.Type = "chat"
	text.HasMedia = false
	text.MediaData = nil
	return handlerFor(Step(st.Step))(e, ctx, text, st)
}

// transcribe returns the transcript and whether it is real text rather than
// the placeholder.
func (e *Engine) transcribe(ctx context.Context, msg Message) (string, bool) {
	if e.transcriber == nil || len(msg.MediaData) == 0 {
		return transcriptPlaceholder, false
	}
	text, err := e.transcriber.Transcribe(ctx, msg.MediaData, msg.MediaMIME)
	if err != nil {
		e.logger.Warn("transcription failed", "user", msg.From, "error", err)
		return transcriptPlaceholder, false
	}
	if strings.TrimSpace(text) == "" {
		return transcriptPlaceholder, false
	}
	return text, true
}
