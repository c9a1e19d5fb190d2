package discord

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"memoria/internal/adapter"
	"memoria/internal/graph"
	"memoria/internal/memory"
	apperrors "memoria/pkg/errors"
)

// replyMemoryLimit caps how many memories go into a reply prompt.
const replyMemoryLimit = 8

var channelRefRe = regexp.MustCompile(`<#(\d+)>`)

// Handler handles Discord message processing: every guild message runs
// through the extractor, and mentions/DMs additionally get a reply.
type Handler struct {
	store     graph.Store
	extractor *memory.Extractor
	llm       *adapter.LLMAdapter
	logger    *zap.Logger
}

// NewHandler creates a new Discord message handler. The LLM adapter may
// be nil; the bot then captures memories without replying.
func NewHandler(store graph.Store, extractor *memory.Extractor, llm *adapter.LLMAdapter, logger *zap.Logger) *Handler {
	return &Handler{
		store:     store,
		extractor: extractor,
		llm:       llm,
		logger:    logger,
	}
}

// HandleMessage processes a Discord message
func (h *Handler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from the bot itself
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if m.Author.Bot {
		return
	}

	isDM := m.GuildID == ""
	isMentioned := false
	for _, mention := range m.Mentions {
		if mention.ID == s.State.User.ID {
			isMentioned = true
			break
		}
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	ctx := context.Background()

	// Memory capture only applies to guild messages; DMs have no tenant.
	if !isDM {
		h.capture(ctx, s, m, content)
	}

	// Reply to DMs and mentions. Reply failure never undoes capture.
	if isDM || isMentioned {
		h.reply(ctx, s, m, content)
	}
}

// capture runs the extractor over the message and persists the result.
func (h *Handler) capture(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	if err := h.store.UpsertGuild(ctx, m.GuildID, guildName(s, m.GuildID)); err != nil {
		h.logger.Warn("Failed to upsert guild",
			zap.String("guild_id", m.GuildID),
			zap.Error(err),
		)
		// Continue anyway - registry failure shouldn't block capture
	}

	msg := h.toMessage(s, m, content)
	extracted := h.extractor.Extract(msg)
	if extracted == nil {
		return
	}

	edge, err := h.store.CreateMemory(ctx, m.GuildID, m.ChannelID, m.ID, extracted)
	if err != nil {
		h.logger.Error("Failed to store memory",
			zap.String("guild_id", m.GuildID),
			zap.String("message_id", m.ID),
			zap.Error(err),
		)
		return
	}

	h.logger.Debug("Memory captured",
		zap.String("guild_id", m.GuildID),
		zap.String("edge_id", edge.ID),
		zap.String("edge_type", string(edge.EdgeType)),
		zap.Float64("importance", edge.Importance),
	)
}

// reply generates and sends a response grounded in the guild's most
// urgent memories. Memories used for the reply count as accessed.
func (h *Handler) reply(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	if h.llm == nil {
		return
	}

	var memories []graph.Edge
	if m.GuildID != "" {
		edges, err := h.store.ListEdges(ctx, m.GuildID, graph.EdgeFilter{Limit: replyMemoryLimit})
		if err != nil {
			h.logger.Warn("Failed to load memories for reply",
				zap.String("guild_id", m.GuildID),
				zap.Error(err),
			)
		} else {
			memories = edges
		}

		if len(memories) > 0 {
			ids := make([]string, len(memories))
			for i, e := range memories {
				ids[i] = e.ID
			}
			if err := h.store.RecordAccess(ctx, m.GuildID, ids); err != nil {
				h.logger.Warn("Failed to record memory access",
					zap.String("guild_id", m.GuildID),
					zap.Error(err),
				)
			}
		}
	}

	response, err := h.llm.Reply(ctx, memories, stripBotMention(content, s.State.User.ID))
	if err != nil {
		errType := "unknown"
		if baseErr, ok := err.(*apperrors.BaseError); ok {
			errType = string(baseErr.Type)
		}
		h.logger.Error("Failed to generate reply",
			zap.Error(err),
			zap.String("error_type", errType),
			zap.String("user_id", m.Author.ID),
		)
		return
	}
	if response == "" {
		return
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, response); err != nil {
		sendErr := apperrors.NewDiscordMessageSendFailed(m.ChannelID, err)
		h.logger.Error("Failed to send reply", zap.Error(sendErr))
	}
}

// toMessage converts a Discord message into the transport-neutral form
// the extractor consumes.
func (h *Handler) toMessage(s *discordgo.Session, m *discordgo.MessageCreate, content string) memory.Message {
	msg := memory.Message{
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Content:    content,
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		MessageID:  m.ID,
	}

	for _, mention := range m.Mentions {
		if mention.ID == s.State.User.ID {
			continue
		}
		msg.MentionedUsers = append(msg.MentionedUsers, memory.MentionedUser{
			ID:   mention.ID,
			Name: mention.Username,
		})
	}

	for _, match := range channelRefRe.FindAllStringSubmatch(m.Content, -1) {
		ref := memory.MentionedChannel{ID: match[1]}
		if ch, err := s.State.Channel(match[1]); err == nil {
			ref.Name = ch.Name
			ref.Private = ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM
		}
		msg.MentionedChannels = append(msg.MentionedChannels, ref)
	}

	for _, roleID := range m.MentionRoles {
		ref := memory.MentionedRole{ID: roleID}
		if role, err := s.State.Role(m.GuildID, roleID); err == nil {
			ref.Name = role.Name
		}
		msg.MentionedRoles = append(msg.MentionedRoles, ref)
	}

	return msg
}

// stripBotMention removes a leading bot mention from the message text.
func stripBotMention(content, botID string) string {
	for _, prefix := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(content, prefix))
		}
	}
	return content
}

// guildName resolves the guild's display name from session state, if
// the guild is cached.
func guildName(s *discordgo.Session, guildID string) string {
	if g, err := s.State.Guild(guildID); err == nil {
		return g.Name
	}
	return ""
}
