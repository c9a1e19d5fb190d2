package memory

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoria/internal/graph"
)

func guildMessage(content string) Message {
	return Message{
		AuthorID:   "user-1",
		AuthorName: "Alice",
		Content:    content,
		GuildID:    "guild-1",
		ChannelID:  "chan-1",
		MessageID:  "msg-1",
	}
}

func TestExtract_RejectsMessagesWithoutGuild(t *testing.T) {
	e := NewExtractor()
	msg := guildMessage("I love pizza")
	msg.GuildID = ""

	assert.Nil(t, e.Extract(msg))
}

func TestExtract_RejectsShortAndEmptyMessages(t *testing.T) {
	e := NewExtractor()

	assert.Nil(t, e.Extract(guildMessage("")))
	assert.Nil(t, e.Extract(guildMessage("hi")))
	assert.Nil(t, e.Extract(guildMessage("  a  ")))
}

func TestExtract_LikesFact(t *testing.T) {
	e := NewExtractor()

	mem := e.Extract(guildMessage("I love pizza"))
	require.NotNil(t, mem)
	assert.Equal(t, graph.EdgeTypeFact, mem.EdgeType)
	assert.Equal(t, "User likes pizza", mem.Summary)
	assert.Equal(t, 0.7, mem.Importance)

	// Author always leads the entity list.
	require.NotEmpty(t, mem.Entities)
	assert.Equal(t, graph.NodeKindUser, mem.Entities[0].Kind)
	assert.Equal(t, "user-1", mem.Entities[0].ExternalID)
	assert.Equal(t, graph.RoleParticipant, mem.Entities[0].Role)
	assert.Equal(t, 1.0, mem.Entities[0].Weight)

	// The liked thing becomes a subject topic.
	var subject *graph.ExtractedEntity
	for i := range mem.Entities {
		if mem.Entities[i].Role == graph.RoleSubject {
			subject = &mem.Entities[i]
		}
	}
	require.NotNil(t, subject)
	assert.Equal(t, "pizza", subject.Name)
	assert.Equal(t, graph.NodeKindTopic, subject.Kind)
}

func TestExtract_DislikesFact(t *testing.T) {
	e := NewExtractor()

	mem := e.Extract(guildMessage("I really hate mondays"))
	require.NotNil(t, mem)
	assert.Equal(t, graph.EdgeTypeFact, mem.EdgeType)
	assert.Equal(t, "User dislikes mondays", mem.Summary)
	assert.Equal(t, 0.7, mem.Importance)
}

func TestExtract_FavoriteFact(t *testing.T) {
	e := NewExtractor()

	mem := e.Extract(guildMessage("my favorite language is Go!"))
	require.NotNil(t, mem)
	assert.Equal(t, graph.EdgeTypeFact, mem.EdgeType)
	assert.Equal(t, "User's favorite language is Go", mem.Summary)
	assert.Equal(t, 0.8, mem.Importance)
}

func TestExtract_RememberThatFact(t *testing.T) {
	e := NewExtractor()

	mem := e.Extract(guildMessage("remember that the standup moved to 10am"))
	require.NotNil(t, mem)
	assert.Equal(t, graph.EdgeTypeFact, mem.EdgeType)
	assert.Equal(t, "Remember: the standup moved to 10am", mem.Summary)
	assert.Equal(t, 0.9, mem.Importance)
}

func TestExtract_GenericIsContinuationIsNotAFact(t *testing.T) {
	e := NewExtractor()

	// "I'm going ..." matches the is-pattern but the deny-list rejects it;
	// the long text still yields an observation.
	mem := e.Extract(guildMessage("I'm going to the store later this afternoon"))
	require.NotNil(t, mem)
	assert.Equal(t, graph.EdgeTypeObservation, mem.EdgeType)
}

func TestExtract_IsFact(t *testing.T) {
	e := NewExtractor()

	mem := e.Extract(guildMessage("I am a backend engineer"))
	require.NotNil(t, mem)
	assert.Equal(t, graph.EdgeTypeFact, mem.EdgeType)
	assert.Equal(t, "User is backend engineer", mem.Summary)
	assert.Equal(t, 0.6, mem.Importance)
}

func TestExtract_ObservationRequiresSignal(t *testing.T) {
	e := NewExtractor()

	// Short, stop-wordy text with no mentions or topics: nothing kept.
	assert.Nil(t, e.Extract(guildMessage("the and for you")))

	// Still no topics, but long enough to pass the gate on length alone.
	mem := e.Extract(guildMessage("the and for you but not all can her was one"))
	require.NotNil(t, mem)
	assert.Equal(t, graph.EdgeTypeObservation, mem.EdgeType)
}

func TestExtract_ObservationWithMentionedUser(t *testing.T) {
	e := NewExtractor()
	msg := guildMessage("good game yesterday <@42>")
	msg.MentionedUsers = []MentionedUser{{ID: "42", Name: "Bob"}}

	mem := e.Extract(msg)
	require.NotNil(t, mem)
	assert.Equal(t, graph.EdgeTypeObservation, mem.EdgeType)
	assert.Contains(t, mem.Summary, "Alice")
	assert.Contains(t, mem.Summary, "Bob")

	var bob *graph.ExtractedEntity
	for i := range mem.Entities {
		if mem.Entities[i].ExternalID == "42" {
			bob = &mem.Entities[i]
		}
	}
	require.NotNil(t, bob)
	assert.Equal(t, graph.RoleParticipant, bob.Role)
	assert.Equal(t, 0.9, bob.Weight)
}

func TestExtract_PrivateChannelsNeverBecomeEntities(t *testing.T) {
	e := NewExtractor()
	msg := guildMessage("let's move this discussion to <#100> tomorrow")
	msg.MentionedChannels = []MentionedChannel{
		{ID: "100", Name: "secret-dm", Private: true},
	}

	mem := e.Extract(msg)
	require.NotNil(t, mem)
	for _, ent := range mem.Entities {
		assert.NotEqual(t, graph.NodeKindChannel, ent.Kind)
	}
}

func TestExtract_KeywordTopics(t *testing.T) {
	e := NewExtractor()

	mem := e.Extract(guildMessage("deployed the kubernetes cluster with prometheus monitoring today"))
	require.NotNil(t, mem)

	var topics []string
	for _, ent := range mem.Entities {
		if ent.Role == graph.RoleTopic {
			topics = append(topics, ent.Name)
		}
	}
	assert.Contains(t, topics, "kubernetes")
	assert.Contains(t, topics, "prometheus")
	assert.LessOrEqual(t, len(topics), 5)

	// First-seen order is preserved.
	require.GreaterOrEqual(t, len(topics), 2)
	assert.Equal(t, "deployed", topics[0])
}

func TestExtract_KeywordsIgnoreMentionsAndURLs(t *testing.T) {
	kws := extractKeywords("check https://example.com/some-long-path and <@12345> please soon")
	assert.NotContains(t, kws, "https")
	assert.NotContains(t, kws, "12345")
	assert.Contains(t, kws, "check")
}

func TestExtract_SummaryTruncatedTo80(t *testing.T) {
	e := NewExtractor()
	msg := guildMessage(strings.Repeat("wonderful serendipitous conversation ", 10))
	msg.AuthorName = "SomeExtremelyLongUserNameThatKeepsGoingAndGoingAndGoing"

	mem := e.Extract(msg)
	require.NotNil(t, mem)
	assert.LessOrEqual(t, len(mem.Summary), 80)
}

func TestExtract_ImportanceAlwaysInRange(t *testing.T) {
	e := NewExtractor()
	samples := []string{
		"I love pizza",
		"remember that my birthday is in June",
		strings.Repeat("what an exciting day!!! ", 20),
		"deployed kubernetes prometheus grafana loki tempo today?!",
	}
	for _, s := range samples {
		mem := e.Extract(guildMessage(s))
		if mem == nil {
			continue
		}
		assert.GreaterOrEqual(t, mem.Importance, 0.0, "sample %q", s)
		assert.LessOrEqual(t, mem.Importance, 1.0, "sample %q", s)
	}
}

func TestObservationSummary_TruncatesOnRuneBoundary(t *testing.T) {
	// Two ASCII bytes up front put the cut mid-rune if truncation
	// counts bytes instead of runes.
	author := "Jo" + strings.Repeat("ë", 90)

	summary := observationSummary(author, nil, nil)
	assert.True(t, utf8.ValidString(summary))
	assert.Equal(t, maxSummaryLength, utf8.RuneCountInString(summary))
	assert.True(t, strings.HasSuffix(summary, "..."))
}

func TestCleanCapture_TruncatesOnRuneBoundary(t *testing.T) {
	got := cleanCapture("x" + strings.Repeat("é", 70))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 60, utf8.RuneCountInString(got))

	// Short multi-byte captures pass through untouched.
	assert.Equal(t, "crème brûlée", cleanCapture("crème brûlée."))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "deep-dish-pizza", slugify("Deep Dish  Pizza!"))
	assert.Equal(t, "go", slugify("Go"))
}
