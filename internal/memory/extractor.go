package memory

import (
	"fmt"
	"regexp"
	"strings"

	"memoria/internal/graph"
)

// ============================================================================
// Structural Extraction
// ============================================================================

// Extractor turns raw message text into graph-update candidates without
// calling a language model. It is pure and safe for concurrent use.
type Extractor struct{}

// NewExtractor creates a new structural extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

const (
	maxKeywordTopics       = 5
	maxSummaryLength       = 80
	minObservationLength   = 20
	minMessageLength       = 3
	subjectEntityWeight    = 0.8
	mentionedUserWeight    = 0.9
	mentionedChannelWeight = 0.5
	mentionedRoleWeight    = 0.6
	keywordTopicWeight     = 0.3
)

// stopWords are tokens that never become keyword topics.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "who": true,
	"has": true, "had": true, "have": true, "this": true, "that": true,
	"with": true, "they": true, "them": true, "then": true, "than": true,
	"will": true, "just": true, "about": true, "what": true, "when": true,
	"where": true, "which": true, "their": true, "would": true, "there": true,
	"been": true, "being": true, "were": true, "your": true, "from": true,
	"some": true, "like": true, "into": true, "more": true, "only": true,
	"over": true, "very": true, "also": true, "because": true, "really": true,
	"dont": true, "doesnt": true, "didnt": true, "cant": true, "wont": true,
	"its": true, "im": true, "ive": true, "youre": true, "thats": true,
	"going": true, "gonna": true, "want": true, "know": true, "think": true,
	"yeah": true, "okay": true, "well": true, "here": true, "got": true,
	"get": true, "lol": true, "lmao": true, "haha": true,
}

// genericIsContinuations rejects low-information "I am X" captures. This
// deny-list is intentionally best-effort.
var genericIsContinuations = map[string]bool{
	"going": true, "gonna": true, "ok": true, "okay": true, "ready": true,
	"sure": true, "here": true, "back": true, "done": true, "fine": true,
	"good": true, "sorry": true, "just": true, "not": true, "about": true,
	"so": true, "still": true, "on": true, "off": true, "in": true,
	"trying": true, "looking": true, "thinking": true, "waiting": true,
}

var (
	mentionMarkupRe = regexp.MustCompile(`<[@#][!&]?\d+>`)
	urlRe           = regexp.MustCompile(`https?://\S+`)
	punctuationRe   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// factPattern pairs a predicate regexp with an extractor for the matched
// text. Patterns are evaluated in order; the first that yields wins.
type factPattern struct {
	re         *regexp.Regexp
	importance float64
	build      func(captures []string) (summary, subject string, ok bool)
}

var factPatterns = []factPattern{
	{
		re:         regexp.MustCompile(`(?i)\bi\s+(?:really\s+)?(?:love|like|enjoy|adore)\s+(.+)`),
		importance: 0.7,
		build: func(c []string) (string, string, bool) {
			obj := cleanCapture(c[1])
			if obj == "" {
				return "", "", false
			}
			return fmt.Sprintf("User likes %s", obj), obj, true
		},
	},
	{
		re:         regexp.MustCompile(`(?i)\bi\s+(?:really\s+)?(?:hate|dislike|despise|can'?t\s+stand)\s+(.+)`),
		importance: 0.7,
		build: func(c []string) (string, string, bool) {
			obj := cleanCapture(c[1])
			if obj == "" {
				return "", "", false
			}
			return fmt.Sprintf("User dislikes %s", obj), obj, true
		},
	},
	{
		re:         regexp.MustCompile(`(?i)\bi\s*(?:'m|am)\s+(?:a\s+|an\s+)?(.+)`),
		importance: 0.6,
		build: func(c []string) (string, string, bool) {
			obj := cleanCapture(c[1])
			if obj == "" {
				return "", "", false
			}
			first := strings.ToLower(strings.Fields(obj)[0])
			if genericIsContinuations[first] {
				return "", "", false
			}
			return fmt.Sprintf("User is %s", obj), obj, true
		},
	},
	{
		re:         regexp.MustCompile(`(?i)\bmy\s+favou?rite\s+([\w\s]+?)\s+is\s+(.+)`),
		importance: 0.8,
		build: func(c []string) (string, string, bool) {
			category := cleanCapture(c[1])
			obj := cleanCapture(c[2])
			if category == "" || obj == "" {
				return "", "", false
			}
			return fmt.Sprintf("User's favorite %s is %s", category, obj), obj, true
		},
	},
	{
		re:         regexp.MustCompile(`(?i)\bremember\s+that\s+(.+)`),
		importance: 0.9,
		build: func(c []string) (string, string, bool) {
			obj := cleanCapture(c[1])
			if obj == "" {
				return "", "", false
			}
			return fmt.Sprintf("Remember: %s", obj), obj, true
		},
	},
}

// Extract produces a graph-update candidate for one message, or nil when
// the message carries nothing worth remembering.
func (e *Extractor) Extract(msg Message) *graph.ExtractedMemory {
	if msg.GuildID == "" {
		return nil
	}
	text := strings.TrimSpace(msg.Content)
	if len(text) < minMessageLength {
		return nil
	}

	entities := e.buildEntities(msg, text)

	// Fact patterns win over observations; first match in order takes it.
	for _, p := range factPatterns {
		captures := p.re.FindStringSubmatch(text)
		if captures == nil {
			continue
		}
		summary, subject, ok := p.build(captures)
		if !ok {
			continue
		}
		factEntities := append(entities, graph.ExtractedEntity{
			Kind:       graph.NodeKindTopic,
			ExternalID: slugify(subject),
			Name:       subject,
			Role:       graph.RoleSubject,
			Weight:     subjectEntityWeight,
		})
		return &graph.ExtractedMemory{
			Summary:    summary,
			Content:    text,
			EdgeType:   graph.EdgeTypeFact,
			Importance: p.importance,
			Entities:   factEntities,
		}
	}

	// Observations need at least one signal beyond the author.
	otherUsers, topics := partitionEntities(entities, msg.AuthorID)
	if len(otherUsers) == 0 && len(topics) == 0 && len(msg.Content) <= minObservationLength {
		return nil
	}

	return &graph.ExtractedMemory{
		Summary:    observationSummary(msg.AuthorName, otherUsers, topics),
		Content:    text,
		EdgeType:   graph.EdgeTypeObservation,
		Importance: observationImportance(text, len(otherUsers), len(topics)),
		Entities:   entities,
	}
}

// buildEntities assembles the entity list: the author always comes first,
// then mentioned users, channels, roles and keyword topics.
func (e *Extractor) buildEntities(msg Message, text string) []graph.ExtractedEntity {
	entities := []graph.ExtractedEntity{{
		Kind:       graph.NodeKindUser,
		ExternalID: msg.AuthorID,
		Name:       msg.AuthorName,
		Role:       graph.RoleParticipant,
		Weight:     1.0,
	}}

	seenUsers := map[string]bool{msg.AuthorID: true}
	for _, u := range msg.MentionedUsers {
		if u.ID == "" || seenUsers[u.ID] {
			continue
		}
		seenUsers[u.ID] = true
		entities = append(entities, graph.ExtractedEntity{
			Kind:       graph.NodeKindUser,
			ExternalID: u.ID,
			Name:       u.Name,
			Role:       graph.RoleParticipant,
			Weight:     mentionedUserWeight,
		})
	}

	seenChannels := map[string]bool{}
	for _, ch := range msg.MentionedChannels {
		if ch.ID == "" || ch.Private || seenChannels[ch.ID] {
			continue
		}
		seenChannels[ch.ID] = true
		entities = append(entities, graph.ExtractedEntity{
			Kind:       graph.NodeKindChannel,
			ExternalID: ch.ID,
			Name:       ch.Name,
			Role:       graph.RoleLocation,
			Weight:     mentionedChannelWeight,
		})
	}

	for _, role := range msg.MentionedRoles {
		if role.ID == "" {
			continue
		}
		entities = append(entities, graph.ExtractedEntity{
			Kind:       graph.NodeKindTopic,
			ExternalID: "role-" + role.ID,
			Name:       role.Name,
			Role:       graph.RoleTopic,
			Weight:     mentionedRoleWeight,
		})
	}

	for _, kw := range extractKeywords(text) {
		entities = append(entities, graph.ExtractedEntity{
			Kind:       graph.NodeKindTopic,
			ExternalID: kw,
			Name:       kw,
			Role:       graph.RoleTopic,
			Weight:     keywordTopicWeight,
		})
	}

	return entities
}

// extractKeywords pulls up to five keyword topics out of the text,
// preserving first-seen order.
func extractKeywords(text string) []string {
	cleaned := mentionMarkupRe.ReplaceAllString(text, " ")
	cleaned = urlRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.ToLower(cleaned)
	cleaned = punctuationRe.ReplaceAllString(cleaned, " ")

	var keywords []string
	seen := map[string]bool{}
	for _, token := range strings.Fields(cleaned) {
		if len(token) < 3 || stopWords[token] || seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
		if len(keywords) == maxKeywordTopics {
			break
		}
	}
	return keywords
}

// partitionEntities splits the entity list into non-author participants
// and topic names.
func partitionEntities(entities []graph.ExtractedEntity, authorID string) (users []string, topics []string) {
	for _, ent := range entities {
		switch {
		case ent.Kind == graph.NodeKindUser && ent.ExternalID != authorID:
			users = append(users, ent.Name)
		case ent.Role == graph.RoleTopic:
			topics = append(topics, ent.Name)
		}
	}
	return users, topics
}

// observationSummary renders "{author}[ with A and B][ about x, y, z]",
// truncated to 80 characters.
func observationSummary(author string, otherUsers, topics []string) string {
	var b strings.Builder
	b.WriteString(author)
	if len(otherUsers) > 0 {
		if len(otherUsers) > 2 {
			otherUsers = otherUsers[:2]
		}
		b.WriteString(" with ")
		b.WriteString(strings.Join(otherUsers, " and "))
	}
	if len(topics) > 0 {
		if len(topics) > 3 {
			topics = topics[:3]
		}
		b.WriteString(" about ")
		b.WriteString(strings.Join(topics, ", "))
	}
	summary := b.String()
	if runes := []rune(summary); len(runes) > maxSummaryLength {
		summary = string(runes[:maxSummaryLength-3]) + "..."
	}
	return summary
}

// observationImportance scores an observation from its length, entity
// counts and punctuation, clamped to [0, 1].
func observationImportance(text string, otherUserCount, topicCount int) float64 {
	importance := 0.3
	if len(text) > 50 {
		importance += 0.1
	}
	if len(text) > 100 {
		importance += 0.1
	}
	userBonus := float64(otherUserCount) * 0.15
	if userBonus > 0.3 {
		userBonus = 0.3
	}
	topicBonus := float64(topicCount) * 0.05
	if topicBonus > 0.2 {
		topicBonus = 0.2
	}
	importance += userBonus + topicBonus
	if strings.Contains(text, "?") {
		importance += 0.1
	}
	if strings.Contains(text, "!") {
		importance += 0.05
	}
	return graph.Clamp01(importance)
}

// cleanCapture trims a regex capture down to a usable phrase.
func cleanCapture(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".,!?;:")
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > 60 {
		s = string(runes[:60])
		if idx := strings.LastIndex(s, " "); idx > 30 {
			s = s[:idx]
		}
	}
	return s
}

// slugify builds a stable external id for a free-text subject.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctuationRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), "-")
}
