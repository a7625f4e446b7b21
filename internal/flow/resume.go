// ABOUTME: Resume (currículo) submission flow with channel survey and file upload
// ABOUTME: Uploads are validated for MIME/size and saved with bounded retries

package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inauguralar/atende-gateway/internal/media"
	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

func resumeChannelButtons() []transport.Button {
	return []transport.Button{
		{ID: "1", Text: "Facebook"},
		{ID: "2", Text: "Instagram"},
		{ID: "3", Text: "WhatsApp"},
		{ID: "4", Text: "Amigos e Familiares"},
		{ID: "5", Text: "Outro"},
	}
}

func resumeChannelPrompt(st *store.ConversationState) Result {
	st.Data.Resume = &store.ResumeData{}
	return Result{
		Response: "Antes de continuarmos, por onde você ficou sabendo das nossas vagas?",
		Next:     StepResumeChannel,
		Buttons:  resumeChannelButtons(),
	}
}

const resumeFilePrompt = "Ótimo! Agora, por favor, envie seu currículo em PDF (anexe o arquivo nesta conversa).\n\nCaso não tenha em PDF, pode enviar uma foto (imagem) do seu currículo."

func (e *Engine) handleResume(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if st.Data.Resume == nil {
		st.Data.Resume = &store.ResumeData{}
	}

	switch Step(st.Step) {
	case StepResumeChannel:
		return e.resumeChannel(msg, st)
	case StepResumeChannelOther:
		return e.resumeChannelOther(msg, st)
	case StepResumeFile, StepResumeLegacyFile:
		return e.resumeFile(ctx, msg, st)
	case StepResumePostAnswer:
		return e.resumePostAnswer(msg, st)
	}

	// Stale resume step: restart the survey.
	return Result{
		Response: "Vamos começar o processo de envio do seu currículo. Por onde você ficou sabendo das nossas vagas?\n\n*1*. Facebook\n*2*. Instagram\n*3*. WhatsApp\n*4*. Por amigos e familiares\n*5*. Outro",
		Next:     StepResumeChannel,
		Buttons:  resumeChannelButtons(),
	}, nil
}

func (e *Engine) resumeChannel(msg Message, st *store.ConversationState) (Result, error) {
	normalized := Normalize(msg.Body)

	var channel string
	switch {
	case strings.Contains(normalized, "1"), strings.Contains(normalized, "facebook"):
		channel = "Facebook"
	case strings.Contains(normalized, "2"), strings.Contains(normalized, "instagram"):
		channel = "Instagram"
	case strings.Contains(normalized, "3"), strings.Contains(normalized, "whatsapp"):
		channel = "WhatsApp"
	case strings.Contains(normalized, "4"), strings.Contains(normalized, "amigos"), strings.Contains(normalized, "familiares"):
		channel = "Amigos e Familiares"
	case strings.Contains(normalized, "5"), strings.Contains(normalized, "outro"):
		channel = "Outro"
	}

	if channel == "" {
		return Result{
			Response: "Por favor, responda com: Facebook, Instagram, WhatsApp, Amigos e Familiares ou Outro.",
			Next:     StepResumeChannel,
			Buttons:  resumeChannelButtons(),
		}, nil
	}

	st.Data.Resume.Channel = channel
	if channel == "Outro" {
		return Result{
			Response: "Por favor, escreva por onde você ficou sabendo das nossas vagas:",
			Next:     StepResumeChannelOther,
		}, nil
	}
	return Result{Response: resumeFilePrompt, Next: StepResumeFile}, nil
}

func (e *Engine) resumeChannelOther(msg Message, st *store.ConversationState) (Result, error) {
	answer := Normalize(msg.Body)
	if len(answer) < 2 {
		return Result{
			Response: "Por favor, escreva por onde você ficou sabendo das nossas vagas:",
			Next:     StepResumeChannelOther,
		}, nil
	}
	st.Data.Resume.Channel = answer
	return Result{
		Response: "Obrigado por informar! Agora vamos continuar com o processo de envio do seu currículo. Por favor, envie seu currículo em PDF.\n\nCaso não tenha em PDF, pode enviar uma foto (imagem) do seu currículo.",
		Next:     StepResumeFile,
	}, nil
}

func (e *Engine) resumeFile(ctx context.Context, msg Message, st *store.ConversationState) (Result, error) {
	if !msg.HasMedia {
		return Result{
			Response: "Por favor, envie seu currículo em PDF ou como imagem (foto) como anexo nesta conversa.",
			Next:     StepResumeFile,
		}, nil
	}

	if err := e.uploads.Validate(msg.MediaMIME, int64(len(msg.MediaData))); err != nil {
		switch {
		case errors.Is(err, media.ErrDisallowedType):
			return Result{
				Response: "⚠️ O arquivo enviado não é um PDF ou imagem suportada. Por favor, envie seu currículo em PDF ou como imagem (JPEG/PNG/GIF).",
				Next:     StepResumeFile,
			}, nil
		case errors.Is(err, media.ErrTooLarge):
			return Result{
				Response: "⚠️ O arquivo é muito grande. Envie um arquivo menor, por favor.",
				Next:     StepResumeFile,
			}, nil
		}
		return Result{}, err
	}

	name := msg.MediaName
	if name == "" {
		name = fmt.Sprintf("curriculo_%s_%d%s", msg.From, time.Now().Unix(), extensionFor(msg.MediaMIME))
	}
	path, err := e.uploads.Save(ctx, name, msg.MediaData)
	if err != nil {
		e.logger.Error("resume save failed", "user", msg.From, "error", err)
		return Result{
			Response: "❌ Erro ao salvar o arquivo. Por favor, tente novamente.",
			Next:     StepResumeFile,
		}, nil
	}

	st.Data.Resume.FileName = name
	st.Data.Resume.FilePath = path
	e.logger.Info("resume received", "user", msg.From, "file", path, "channel", st.Data.Resume.Channel)

	return Result{
		Response: "✅ Currículo recebido com sucesso! Muito obrigado pelo interesse! Nossa equipe irá analisar seu perfil e, caso haja compatibilidade, entraremos em contato.\n\nPosso te ajudar com mais alguma coisa?\n\n*1* - Sim\n*2* - Não",
		Next:     StepResumePostAnswer,
	}, nil
}

func (e *Engine) resumePostAnswer(msg Message, st *store.ConversationState) (Result, error) {
	normalized := Normalize(msg.Body)
	if isYes(normalized) {
		return mainMenuResult(st.Data.FirstName), nil
	}
	if isNo(normalized) {
		return goodbye(), nil
	}
	return Result{
		Response: "⚠️ Por favor, responda com:\n\n*1* - Se deseja mais alguma coisa\n*2* - Se não precisa de mais nada\n\nOu use as palavras *sim* ou *não*:",
		Next:     StepResumePostAnswer,
		Buttons: []transport.Button{
			{ID: "1", Text: "Sim"},
			{ID: "2", Text: "Não"},
		},
	}, nil
}

func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(strings.ToLower(base)) {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
