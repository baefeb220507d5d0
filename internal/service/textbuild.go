package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odysseia-chat/worldbook/internal/domain"
)

// Categories with dedicated document builders. Unknown categories fall back
// to a raw stringification of the content.
const (
	CategoryCommunityMember = "社区成员"
	CategoryCommunityInfo   = "社区信息"
	CategoryCulture         = "社区文化"
	CategoryMajorEvent      = "社区大事件"
	CategorySlang           = "俚语"
)

// DocumentEntry is the category-agnostic view of a committed entry that the
// indexer renders into embeddable text.
type DocumentEntry struct {
	ID        string
	Title     string
	Name      string
	Category  string
	Content   map[string]string
	Aliases   []string
	RefersTo  []string
	Nicknames []string
	Metadata  domain.ChunkMetadata
}

// BuildDocumentText renders a structured textual representation of an entry
// for embedding, dispatching on its category. The second return value is
// false when the category has no dedicated builder and the raw content
// fallback was used; callers should log a warning in that case.
func BuildDocumentText(e *DocumentEntry) (string, bool) {
	switch e.Category {
	case CategoryCommunityMember:
		return buildMemberText(e), true
	case CategoryCommunityInfo, CategoryCulture, CategoryMajorEvent:
		return buildGenericText(e), true
	case CategorySlang:
		return buildSlangText(e), true
	default:
		return rawContentText(e), false
	}
}

func buildMemberText(e *DocumentEntry) string {
	parts := []string{"类别: " + CategoryCommunityMember}

	if len(e.Nicknames) > 0 {
		parts = append(parts, "昵称:")
		for _, nick := range e.Nicknames {
			parts = append(parts, " - "+nick)
		}
	}

	if lines := formatContent(e.Content); len(lines) > 0 {
		parts = append(parts, "人物信息:")
		parts = append(parts, lines...)
	}

	return strings.Join(parts, "\n")
}

func buildGenericText(e *DocumentEntry) string {
	name := e.Name
	if name == "" {
		name = e.ID
	}
	parts := []string{"类别: " + e.Category, "名称: " + name}

	if len(e.Aliases) > 0 {
		parts = append(parts, "别名:")
		for _, alias := range e.Aliases {
			parts = append(parts, " - "+alias)
		}
	}

	if lines := formatContent(e.Content); len(lines) > 0 {
		parts = append(parts, "描述:")
		parts = append(parts, lines...)
	}

	return strings.Join(parts, "\n")
}

func buildSlangText(e *DocumentEntry) string {
	name := e.Name
	if name == "" {
		name = e.ID
	}
	parts := []string{"类别: " + CategorySlang, "名称: " + name}

	if len(e.Aliases) > 0 {
		parts = append(parts, "也称作:")
		for _, alias := range e.Aliases {
			parts = append(parts, " - "+alias)
		}
	}

	if len(e.RefersTo) > 0 {
		parts = append(parts, "通常指代:")
		for _, ref := range e.RefersTo {
			parts = append(parts, " - "+ref)
		}
	}

	if lines := formatContent(e.Content); len(lines) > 0 {
		parts = append(parts, "具体解释:")
		parts = append(parts, lines...)
	}

	return strings.Join(parts, "\n")
}

func rawContentText(e *DocumentEntry) string {
	if len(e.Content) == 0 {
		return e.Title
	}
	return strings.Join(formatContent(e.Content), "\n")
}

// formatContent renders a content map as " - key: value" lines in a stable
// key order.
func formatContent(content map[string]string) []string {
	if len(content) == 0 {
		return nil
	}

	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf(" - %s: %s", k, content[k]))
	}
	return lines
}
