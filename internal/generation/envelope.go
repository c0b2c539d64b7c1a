package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	jsonStart    = "<!--JSON_START-->"
	jsonEnd      = "<!--JSON_END-->"
	searchPrefix = "<!--SEARCH_QUERY:"
	commentEnd   = "-->"
)

type FactEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type TopicEntry struct {
	Topic    string `json:"topic"`
	Keywords string `json:"keywords"`
}

// Envelope is a model reply split into what is shown and what is stored.
type Envelope struct {
	DisplayText string       `json:"display_text"`
	Facts       []FactEntry  `json:"facts,omitempty"`
	Topics      []TopicEntry `json:"topics,omitempty"`
	SearchQuery string       `json:"search_query,omitempty"`
}

func (e Envelope) NeedsSearch() bool { return e.SearchQuery != "" }

// ParseReply never fails. A malformed JSON block yields no facts or topics but
// is still removed from DisplayText.
func ParseReply(raw string) Envelope {
	var env Envelope

	text := raw
	if q, rest, ok := cutSearchSentinel(text); ok {
		env.SearchQuery = q
		text = rest
	}

	if i := strings.Index(text, jsonStart); i >= 0 {
		block := text[i+len(jsonStart):]
		if j := strings.Index(block, jsonEnd); j >= 0 {
			block = block[:j]
		}
		env.Facts, env.Topics = decodeContextBlock(block)
		text = text[:i]
	}

	env.DisplayText = strings.TrimSpace(text)
	return env
}

func cutSearchSentinel(text string) (query, rest string, ok bool) {
	i := strings.Index(text, searchPrefix)
	if i < 0 {
		return "", text, false
	}
	after := text[i+len(searchPrefix):]
	end := strings.Index(after, commentEnd)
	if end < 0 {
		return strings.TrimSpace(after), text[:i], strings.TrimSpace(after) != ""
	}
	query = strings.TrimSpace(after[:end])
	rest = text[:i] + after[end+len(commentEnd):]
	return query, rest, query != ""
}

type contextBlock struct {
	UserFacts []struct {
		Key   flexString `json:"key"`
		Value flexString `json:"value"`
	} `json:"user_facts"`
	ConversationTopics []struct {
		Topic    flexString `json:"topic"`
		Keywords flexString `json:"keywords"`
	} `json:"conversation_topics"`
}

func decodeContextBlock(block string) ([]FactEntry, []TopicEntry) {
	block = strings.TrimSpace(block)
	block = strings.TrimPrefix(block, "```json")
	block = strings.TrimPrefix(block, "```")
	block = strings.TrimSuffix(strings.TrimSpace(block), "```")

	var cb contextBlock
	if err := json.Unmarshal([]byte(block), &cb); err != nil {
		return nil, nil
	}

	var facts []FactEntry
	for _, f := range cb.UserFacts {
		k, v := strings.TrimSpace(string(f.Key)), strings.TrimSpace(string(f.Value))
		if k == "" || v == "" {
			continue
		}
		facts = append(facts, FactEntry{Key: k, Value: v})
	}

	var topics []TopicEntry
	for _, t := range cb.ConversationTopics {
		tp := strings.TrimSpace(string(t.Topic))
		if tp == "" {
			continue
		}
		topics = append(topics, TopicEntry{Topic: tp, Keywords: strings.TrimSpace(string(t.Keywords))})
	}
	return facts, topics
}

// flexString accepts a JSON string, number or bool.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err == nil || string(b) == "true" || string(b) == "false" {
		*s = flexString(b)
		return nil
	}
	return fmt.Errorf("unsupported json value %s", b)
}
