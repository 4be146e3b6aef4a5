// Package dialogue is the per-conversation controller: it classifies each
// inbound direct message, routes it to trigger handling, AI-driven profile
// extraction or fallback prompts, and emits the outbound actions.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/ai"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/heartbeat"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/logger"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/matchmaking"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/profile"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/store"
)

const (
	msgSearching      = "Finding a match for you... May take a few seconds."
	msgNoMatch        = "I couldn't find a match for you just yet. Tell me a bit more about yourself and try again soon."
	msgTrouble        = "Something went wrong on my side. Please try again in a moment."
	msgFallback       = "I am a matchmaker. Give me information about you so I can match you. If you want to get matched, say: I want to get matched."
	msgAskEmail       = "Great news, I found you a match! Please share your email so I can set everything up."
	msgInvalidEmail   = "Please provide a valid email."
	msgConfirmChat    = "Do you want to chat with the match?"
	msgChannelCreated = "Chat channel created!"
	msgDecline        = "Okay, let me know if you change your mind."

	matchesCategoryName     = "Matches"
	matchChannelName        = "Your Match"
	matchChannelDescription = "A private channel for your match."

	historyLimit = 20
)

// Event is the inbound direct-message notification delivered by the chat
// platform dispatcher.
type Event struct {
	SenderUserID  string `json:"senderUserID"`
	ChatID        string `json:"chatID"`
	ChatMessageID string `json:"chatMessageID"`
}

// Platform is the slice of the chat-platform client the machine acts through.
type Platform interface {
	GetUser(ctx context.Context, userID string) (*heartbeat.User, error)
	RecentMessages(ctx context.Context, chatID string) ([]heartbeat.DirectMessage, error)
	SendDirectMessage(ctx context.Context, toUserID, fromUserID, text string) error
	EnsureChannelCategory(ctx context.Context, name string) (string, error)
	CreateChannelCategory(ctx context.Context, name string) (string, error)
	CreateChatChannel(ctx context.Context, categoryID, name, description string, invitedEmails []string) error
}

// Store is the persistence surface the machine reads and writes.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
	PutProfile(ctx context.Context, userID string, p *profile.Profile) error
	AppendMessage(ctx context.Context, m store.Message) error
	RecentMessages(ctx context.Context, chatID string, limit int) ([]store.Message, error)
}

// Matchmaker runs a scoring pass and explains its outcome.
type Matchmaker interface {
	Run(ctx context.Context, userID string) (*matchmaking.Result, error)
	Explain(ctx context.Context, requesterID, matchedID string) (string, error)
}

// Machine drives the dialogue state transitions for every requester. All
// collaborators are injected; the machine itself holds no network or storage
// code.
type Machine struct {
	platform    Platform
	store       Store
	completer   ai.StructuredCompleter
	matchmaker  Matchmaker
	sessions    *Sessions
	assistantID string
	logger      *zap.Logger
}

func NewMachine(platform Platform, st Store, completer ai.StructuredCompleter, matchmaker Matchmaker, sessions *Sessions, assistantID string, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	if sessions == nil {
		sessions = NewSessions()
	}
	return &Machine{
		platform:    platform,
		store:       st,
		completer:   completer,
		matchmaker:  matchmaker,
		sessions:    sessions,
		assistantID: assistantID,
		logger:      log,
	}
}

// HandleMessage processes one inbound event end to end. It returns false only
// when the turn could not be handled at all; graceful fallbacks count as
// handled.
func (m *Machine) HandleMessage(ctx context.Context, event Event) bool {
	log := m.logger.With(
		zap.String(logger.FieldRequester, event.SenderUserID),
		zap.String("chat_id", event.ChatID),
	)

	recent, err := m.platform.RecentMessages(ctx, event.ChatID)
	if err != nil {
		log.Error("fetching recent messages", zap.Error(err))
		return false
	}
	if len(recent) == 0 {
		log.Warn("no messages in chat, nothing to process")
		return false
	}

	text := Sanitize(recent[len(recent)-1].Content)
	log.Debug("inbound message", zap.String("content", logger.TruncateForLog(text, 120)))

	if err := m.store.AppendMessage(ctx, store.Message{
		ChatID:       event.ChatID,
		MessageID:    event.ChatMessageID,
		SenderUserID: event.SenderUserID,
		Content:      text,
	}); err != nil {
		log.Error("persisting inbound message", zap.Error(err))
		return false
	}

	session := m.sessions.Get(event.SenderUserID)

	switch session.State {
	case StateAwaitingEmail:
		return m.handleAwaitingEmail(ctx, event, session, text, log)
	case StateAwaitingChatConfirmation:
		return m.handleConfirmation(ctx, event, session, text, log)
	default:
		if isTrigger(text) {
			return m.handleTrigger(ctx, event, log)
		}
		return m.handleOpenDialogue(ctx, event, log)
	}
}

// handleTrigger runs the matchmaking engine and either sets the match up
// directly or, when the requester's email is unknown, walks the email prompt
// sequence first.
func (m *Machine) handleTrigger(ctx context.Context, event Event, log *zap.Logger) bool {
	m.reply(ctx, event.ChatID, event.SenderUserID, msgSearching)

	result, err := m.matchmaker.Run(ctx, event.SenderUserID)
	switch {
	case errors.Is(err, matchmaking.ErrProfileNotFound), errors.Is(err, matchmaking.ErrEmptyPopulation):
		log.Info("no match possible", zap.Error(err))
		m.reply(ctx, event.ChatID, event.SenderUserID, msgNoMatch)
		return true
	case err != nil:
		log.Error("matchmaking run failed", zap.Error(err))
		m.reply(ctx, event.ChatID, event.SenderUserID, msgTrouble)
		return false
	}

	if result.TopMatch == nil {
		m.reply(ctx, event.ChatID, event.SenderUserID, msgNoMatch)
		return true
	}

	log.Info("top match selected",
		zap.String("match_id", result.TopMatch.UserID),
		zap.Float64("score", result.TopMatch.Score),
	)

	requester, err := m.platform.GetUser(ctx, event.SenderUserID)
	if err != nil || strings.TrimSpace(requester.Email) == "" {
		// Email unknown: ask for it and resume the setup once captured.
		if err != nil {
			log.Warn("requester lookup failed", zap.Error(err))
		}
		m.sessions.Save(event.SenderUserID, Session{
			State:       StateAwaitingEmail,
			MatchUserID: result.TopMatch.UserID,
		})
		m.reply(ctx, event.ChatID, event.SenderUserID, msgAskEmail)
		return true
	}

	if ok := m.setUpMatchChannel(ctx, event, requester.Email, result.TopMatch.UserID, log); !ok {
		m.reply(ctx, event.ChatID, event.SenderUserID, msgTrouble)
		return false
	}

	m.sessions.Reset(event.SenderUserID)
	return true
}

// setUpMatchChannel ensures the shared Matches category exists, creates the
// private channel and announces the match with an AI-generated explanation.
func (m *Machine) setUpMatchChannel(ctx context.Context, event Event, requesterEmail, matchID string, log *zap.Logger) bool {
	categoryID, err := m.platform.EnsureChannelCategory(ctx, matchesCategoryName)
	if err != nil {
		log.Error("ensuring matches category", zap.Error(err))
		return false
	}

	invited := []string{requesterEmail}
	if match, err := m.platform.GetUser(ctx, matchID); err == nil && strings.TrimSpace(match.Email) != "" {
		invited = append(invited, match.Email)
	} else if err != nil {
		log.Warn("matched user lookup failed", zap.Error(err))
	}

	if err := m.platform.CreateChatChannel(ctx, categoryID, matchChannelName, matchChannelDescription, invited); err != nil {
		log.Error("creating match channel", zap.Error(err))
		return false
	}

	announcement := fmt.Sprintf("I found a match for you! Check the %q category for your new channel.", matchesCategoryName)
	if explanation, err := m.matchmaker.Explain(ctx, event.SenderUserID, matchID); err == nil && explanation != "" {
		announcement += " " + explanation
	} else if err != nil {
		log.Warn("match explanation unavailable", zap.Error(err))
	}

	m.reply(ctx, event.ChatID, event.SenderUserID, announcement)
	return true
}

// handleOpenDialogue forwards the conversation to the AI capability for an
// assistant reply plus profile extraction.
func (m *Machine) handleOpenDialogue(ctx context.Context, event Event, log *zap.Logger) bool {
	history, err := m.history(ctx, event.ChatID)
	if err != nil {
		log.Warn("history reconstruction failed", zap.Error(err))
	}

	turn, err := extractTurn(ctx, m.completer, history)
	if err != nil {
		log.Warn("dialogue extraction failed, sending fallback", zap.Error(err))
		m.reply(ctx, event.ChatID, event.SenderUserID, msgFallback)
		return true
	}

	m.persistExtractedProfile(ctx, event.SenderUserID, &turn.UserProfile, log)

	response := strings.TrimSpace(turn.AssistantResponse)
	if response == "" {
		response = msgFallback
	}
	m.reply(ctx, event.ChatID, event.SenderUserID, response)
	return true
}

// persistExtractedProfile merges the fragment over the stored profile and
// writes it back. Persistence faults keep the conversation going: the turn
// itself already succeeded.
func (m *Machine) persistExtractedProfile(ctx context.Context, userID string, fragment *profile.Profile, log *zap.Logger) {
	current, err := m.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		current = &profile.Profile{}
	} else if err != nil {
		log.Warn("loading stored profile", zap.Error(err))
		current = &profile.Profile{}
	}

	current.Merge(fragment)

	if err := m.store.PutProfile(ctx, userID, current); err != nil {
		log.Warn("persisting extracted profile", zap.Error(err))
	}
}

func (m *Machine) handleAwaitingEmail(ctx context.Context, event Event, session Session, text string, log *zap.Logger) bool {
	if !looksLikeEmail(text) {
		m.reply(ctx, event.ChatID, event.SenderUserID, msgInvalidEmail)
		return true
	}

	session.Email = text

	categoryID, err := m.platform.CreateChannelCategory(ctx, fmt.Sprintf("Matches for %s", session.Email))
	if err != nil {
		log.Error("creating per-user match category", zap.Error(err))
		m.reply(ctx, event.ChatID, event.SenderUserID, msgTrouble)
		m.sessions.Reset(event.SenderUserID)
		return false
	}

	session.CategoryID = categoryID
	session.State = StateAwaitingChatConfirmation
	m.sessions.Save(event.SenderUserID, session)

	m.reply(ctx, event.ChatID, event.SenderUserID, msgConfirmChat)
	return true
}

func (m *Machine) handleConfirmation(ctx context.Context, event Event, session Session, text string, log *zap.Logger) bool {
	defer m.sessions.Reset(event.SenderUserID)

	if !isAffirmative(text) {
		m.reply(ctx, event.ChatID, event.SenderUserID, msgDecline)
		return true
	}

	invited := []string{session.Email}
	if session.MatchUserID != "" {
		if match, err := m.platform.GetUser(ctx, session.MatchUserID); err == nil && strings.TrimSpace(match.Email) != "" {
			invited = append(invited, match.Email)
		} else if err != nil {
			log.Warn("matched user lookup failed", zap.Error(err))
		}
	}

	if err := m.platform.CreateChatChannel(ctx, session.CategoryID, matchChannelName, matchChannelDescription, invited); err != nil {
		log.Error("creating confirmed match channel", zap.Error(err))
		m.reply(ctx, event.ChatID, event.SenderUserID, msgTrouble)
		return false
	}

	m.reply(ctx, event.ChatID, event.SenderUserID, msgChannelCreated)
	return true
}

// history rebuilds recent conversation turns as AI messages, assistant turns
// mapped to the assistant role.
func (m *Machine) history(ctx context.Context, chatID string) ([]ai.Message, error) {
	stored, err := m.store.RecentMessages(ctx, chatID, historyLimit)
	if err != nil {
		return nil, err
	}

	messages := make([]ai.Message, 0, len(stored))
	for _, msg := range stored {
		role := ai.RoleUser
		if msg.SenderUserID == m.assistantID {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: msg.Content})
	}

	return messages, nil
}

// reply sends and persists one outbound assistant message. Delivery and
// persistence faults are logged, not raised: a lost reply must not abort the
// turn that produced it.
func (m *Machine) reply(ctx context.Context, chatID, toUserID, text string) {
	if err := m.platform.SendDirectMessage(ctx, toUserID, m.assistantID, text); err != nil {
		m.logger.Warn("sending reply failed",
			zap.String("to", toUserID),
			zap.Error(err),
		)
	}

	if err := m.store.AppendMessage(ctx, store.Message{
		ChatID:       chatID,
		MessageID:    uuid.NewString(),
		SenderUserID: m.assistantID,
		Content:      text,
	}); err != nil {
		m.logger.Warn("persisting reply failed", zap.Error(err))
	}
}
