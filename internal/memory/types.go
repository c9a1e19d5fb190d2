package memory

// Message is the transport-neutral view of one inbound message. The
// Discord handler and the document ingester both produce these.
type Message struct {
	AuthorID   string
	AuthorName string
	Content    string
	GuildID    string
	ChannelID  string
	MessageID  string

	MentionedUsers    []MentionedUser
	MentionedChannels []MentionedChannel
	MentionedRoles    []MentionedRole
}

// MentionedUser is a user referenced in the message.
type MentionedUser struct {
	ID   string
	Name string
}

// MentionedChannel is a channel referenced in the message. Private covers
// DM and group channels, which never become location entities.
type MentionedChannel struct {
	ID      string
	Name    string
	Private bool
}

// MentionedRole is a role referenced in the message.
type MentionedRole struct {
	ID   string
	Name string
}
