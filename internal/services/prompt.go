package services

import (
	"fmt"
	"strings"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/llm"
)

var languageNames = map[string]string{
	"ja": "Japanese",
	"en": "English",
}

func LanguageName(code string) string {
	if n, ok := languageNames[code]; ok {
		return n
	}
	return code
}

type PromptInput struct {
	Kind     types.Kind
	Item     *types.ChecklistItem
	Language string
	// PriorAdvice is earlier advisory text for the same item, used as extra context.
	PriorAdvice string
	// Vision attaches the item's reference images.
	Vision bool
}

// BuildPrompt renders the messages for one (item, language) pair. The output
// depends only on its input.
func BuildPrompt(in PromptInput) []llm.Message {
	lang := LanguageName(in.Language)
	var system string
	switch in.Kind {
	case types.KindVirtualEvidence:
		system = fmt.Sprintf(
			"You prepare example evidence documents for a compliance self-assessment checklist. "+
				"Write realistic, concise sample documents an organization could present to show it satisfies the item. "+
				"Separate documents with a line containing only '---' and start each with a short title line. "+
				"Respond in %s.", lang)
	default:
		system = fmt.Sprintf(
			"You are an advisor helping organizations complete a compliance self-assessment checklist. "+
				"Explain what the item requires, how to satisfy it, and which evidence to prepare. "+
				"Use short paragraphs and bullet lists. Respond in %s.", lang)
	}

	var b strings.Builder
	item := in.Item
	fmt.Fprintf(&b, "Category: %s\n", strings.TrimSpace(item.Category))
	fmt.Fprintf(&b, "Item: %s\n", strings.TrimSpace(item.Title))
	if d := strings.TrimSpace(item.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	if ev := strings.TrimSpace(item.RequiredEvidence); ev != "" {
		fmt.Fprintf(&b, "Required evidence: %s\n", ev)
	}
	if ctx := strings.TrimSpace(in.PriorAdvice); ctx != "" {
		fmt.Fprintf(&b, "\nExisting advice for this item:\n%s\n", ctx)
	}
	switch in.Kind {
	case types.KindVirtualEvidence:
		b.WriteString("\nWrite two or three example evidence documents for this item.")
	default:
		b.WriteString("\nWrite practical advice for this item.")
	}

	user := llm.Message{Role: llm.RoleUser, Parts: []llm.Part{llm.Text(b.String())}}
	if in.Vision {
		for _, ref := range item.ImageURLs {
			if ref = strings.TrimSpace(ref); ref != "" {
				user.Parts = append(user.Parts, llm.Image(ref))
			}
		}
	}
	return []llm.Message{llm.SystemMessage(system), user}
}
