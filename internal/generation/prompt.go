package generation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/providers/search"
)

const (
	GreetingPrompt = "You are AiBuddy, a friendly and empathetic AI companion. Start a short, welcoming conversation with the user. For example, ask them how they are doing, what they are up to, or mention something interesting to break the ice. Keep your initial message concise."

	titlePrompt = "Based on the following conversation, generate ONLY a short, concise, 2-5 word title. Do NOT include any additional text, punctuation (except apostrophes), or special characters. Provide only the title.\n\nConversation:\n"

	DefaultTitle    = "New Conversation"
	NoResponseReply = "No response from AI Buddy"
)

// BuildPrompt lays out stored context, prior turns and the new message.
// With neither context nor history the message is sent as is.
func BuildPrompt(message string, facts []models.UserFact, topics []models.ConversationTopic, history []string) string {
	var ctxb strings.Builder
	if len(facts) > 0 {
		ctxb.WriteString("User Facts:\n")
		for _, f := range facts {
			fmt.Fprintf(&ctxb, "- %s: %s\n", f.Key, f.Value)
		}
	}
	if len(topics) > 0 {
		ctxb.WriteString("\nConversation Topics:\n")
		for _, t := range topics {
			fmt.Fprintf(&ctxb, "- %s: %s\n", t.Topic, t.Keywords)
		}
	}

	if ctxb.Len() == 0 && len(history) == 0 {
		return message
	}

	var b strings.Builder
	if ctxb.Len() > 0 {
		b.WriteString("Context:\n")
		b.WriteString(ctxb.String())
		b.WriteString("\n")
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, h := range history {
			b.WriteString(h)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("User Message: ")
	b.WriteString(message)
	return b.String()
}

func buildSearchMessage(query, message string, res search.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user said: %q\n", message)
	fmt.Fprintf(&b, "Web search results for %q:\n", query)
	if res.Empty() {
		b.WriteString("No results were found.\n")
	} else {
		if res.Abstract != "" {
			fmt.Fprintf(&b, "Summary: %s\n", res.Abstract)
		}
		if len(res.Related) > 0 {
			b.WriteString("Related:\n")
			for i, r := range res.Related {
				if i == search.MaxRelated {
					break
				}
				fmt.Fprintf(&b, "- %s\n", r)
			}
		}
	}
	b.WriteString("Answer the user naturally using these results. Do not ask for another search.")
	return b.String()
}

var (
	titlePrefixRe   = regexp.MustCompile(`(?i)title:`)
	titleDisallowed = regexp.MustCompile(`[^a-zA-Z0-9\s']`)
)

// CleanTitle reduces raw model output to a bare title.
func CleanTitle(raw string) string {
	t := ParseReply(raw).DisplayText
	t = strings.ReplaceAll(t, `"`, "")
	t = titlePrefixRe.ReplaceAllString(t, "")
	t = titleDisallowed.ReplaceAllString(t, "")
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return DefaultTitle
	}
	return t
}
