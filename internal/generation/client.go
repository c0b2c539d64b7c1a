package generation

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/providers/llm"
	"github.com/yoockh/aibuddy/internal/providers/search"
	"github.com/yoockh/aibuddy/internal/utils"
)

// ContextStore is the part of the context service the client reads and feeds.
type ContextStore interface {
	ListFacts(ctx context.Context) ([]models.UserFact, error)
	ListTopics(ctx context.Context) ([]models.ConversationTopic, error)
	AddFact(ctx context.Context, key, value string) (*models.UserFact, error)
	AddTopic(ctx context.Context, topic, keywords string) (*models.ConversationTopic, error)
}

type Client struct {
	llm    llm.Provider
	search search.Provider
	store  ContextStore
	log    *logrus.Logger
}

func NewClient(p llm.Provider, s search.Provider, store ContextStore, log *logrus.Logger) *Client {
	return &Client{llm: p, search: s, store: store, log: log}
}

// Generate answers message given the prior turns. Facts and topics found in
// the reply are stored before returning.
func (c *Client) Generate(ctx context.Context, message string, history []string) (Envelope, error) {
	const op = "Generation.Generate"

	return c.run(ctx, op, message, history)
}

func (c *Client) Greeting(ctx context.Context, history []string) (Envelope, error) {
	const op = "Generation.Greeting"

	return c.run(ctx, op, GreetingPrompt, history)
}

// SearchAndGenerate answers message from web results for query. The returned
// envelope never asks for a further search.
func (c *Client) SearchAndGenerate(ctx context.Context, query, message string, history []string) (Envelope, error) {
	const op = "Generation.SearchAndGenerate"

	if c.search == nil {
		return Envelope{}, utils.E(utils.CodeUnavailable, op, "search is not configured", nil)
	}
	res, err := c.search.Search(ctx, query)
	if err != nil {
		return Envelope{}, utils.E(utils.CodeUnavailable, op, "search failed", err)
	}

	env, err := c.run(ctx, op, buildSearchMessage(query, message, res), history)
	if err != nil {
		return Envelope{}, err
	}
	env.SearchQuery = ""
	return env, nil
}

func (c *Client) Title(ctx context.Context, transcript string) (string, error) {
	const op = "Generation.Title"

	raw, err := c.llm.Generate(ctx, titlePrompt+transcript)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return DefaultTitle, nil
		}
		return "", utils.E(utils.CodeUnavailable, op, "title generation failed", err)
	}
	return CleanTitle(raw), nil
}

func (c *Client) run(ctx context.Context, op, message string, history []string) (Envelope, error) {
	facts, topics := c.loadContext(ctx)
	prompt := BuildPrompt(message, facts, topics, history)

	raw, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		if !errors.Is(err, llm.ErrEmptyResponse) {
			return Envelope{}, utils.E(utils.CodeUnavailable, op, "generation failed", err)
		}
		raw = NoResponseReply
	}

	env := ParseReply(raw)
	c.persist(ctx, env)
	return env, nil
}

func (c *Client) loadContext(ctx context.Context) ([]models.UserFact, []models.ConversationTopic) {
	if c.store == nil {
		return nil, nil
	}
	facts, err := c.store.ListFacts(ctx)
	if err != nil {
		c.warn(err, "failed to load user facts")
		facts = nil
	}
	topics, err := c.store.ListTopics(ctx)
	if err != nil {
		c.warn(err, "failed to load conversation topics")
		topics = nil
	}
	return facts, topics
}

func (c *Client) persist(ctx context.Context, env Envelope) {
	if c.store == nil {
		return
	}
	for _, f := range env.Facts {
		if _, err := c.store.AddFact(ctx, f.Key, f.Value); err != nil {
			c.warn(err, "failed to store user fact")
		}
	}
	for _, t := range env.Topics {
		if _, err := c.store.AddTopic(ctx, t.Topic, t.Keywords); err != nil {
			c.warn(err, "failed to store conversation topic")
		}
	}
	if c.log != nil && (len(env.Facts) > 0 || len(env.Topics) > 0) {
		c.log.WithFields(logrus.Fields{
			"facts":  len(env.Facts),
			"topics": len(env.Topics),
		}).Debug("context extracted from reply")
	}
}

func (c *Client) warn(err error, msg string) {
	if c.log == nil {
		return
	}
	c.log.WithField("error", err.Error()).Warn(msg)
}
