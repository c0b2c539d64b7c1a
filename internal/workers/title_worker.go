package workers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/aibuddy/internal/services"
)

const (
	DefaultFinishedStream = "conversation:finished"
	DefaultTitleGroup     = "title-workers"
)

// TitleWorkerPool titles finished conversations queued on a Redis stream and
// stores them.
type TitleWorkerPool struct {
	Redis         *redis.Client
	Conversations services.ConversationService
	NumWorkers    int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *TitleWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Conversations == nil {
		return errors.New("TitleWorkerPool missing dependency: Redis/Conversations must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultFinishedStream
	}
	if p.Group == "" {
		p.Group = DefaultTitleGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "t"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *TitleWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *TitleWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	log := p.Logger.WithField("redis_id", msg.ID)

	fc, err := parseFinished(msg.Values)
	if err != nil {
		log.WithError(err).Warn("dropping malformed finished conversation")
		return
	}

	c, err := p.Conversations.Record(ctx, fc.Transcript, fc.EndedAt, fc.Duration)
	if err != nil {
		log.WithError(err).Error("failed to record conversation")
		return
	}
	log.WithFields(logrus.Fields{
		"conversation_id": c.ID,
		"title":           c.Title,
		"minutes":         c.DurationInMinutes,
	}).Info("conversation recorded")
}

type finishedConversation struct {
	Transcript string
	EndedAt    time.Time
	Duration   time.Duration
}

func (f finishedConversation) values() map[string]any {
	return map[string]any{
		"transcript":  f.Transcript,
		"ended_at_ms": strconv.FormatInt(f.EndedAt.UnixMilli(), 10),
		"duration_ms": strconv.FormatInt(f.Duration.Milliseconds(), 10),
	}
}

func parseFinished(values map[string]any) (finishedConversation, error) {
	getStr := func(k string) string {
		v, ok := values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	var fc finishedConversation
	fc.Transcript = getStr("transcript")
	if strings.TrimSpace(fc.Transcript) == "" {
		return fc, errors.New("missing transcript")
	}

	endedMS, err := strconv.ParseInt(getStr("ended_at_ms"), 10, 64)
	if err != nil {
		return fc, errors.New("invalid ended_at_ms")
	}
	fc.EndedAt = time.UnixMilli(endedMS)

	if d := getStr("duration_ms"); d != "" {
		ms, err := strconv.ParseInt(d, 10, 64)
		if err != nil {
			return fc, errors.New("invalid duration_ms")
		}
		fc.Duration = time.Duration(ms) * time.Millisecond
	}
	return fc, nil
}

// ConversationRecorder hands finished conversations to the title workers, or
// records them inline when no stream is available.
type ConversationRecorder struct {
	Redis         *redis.Client // optional
	Stream        string
	Conversations services.ConversationService
	Logger        *logrus.Logger
}

func (r *ConversationRecorder) RecordConversation(ctx context.Context, transcript string, endedAt time.Time, duration time.Duration) error {
	fc := finishedConversation{Transcript: transcript, EndedAt: endedAt, Duration: duration}

	if r.Redis != nil {
		stream := r.Stream
		if stream == "" {
			stream = DefaultFinishedStream
		}
		err := r.Redis.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: fc.values()}).Err()
		if err == nil {
			return nil
		}
		if r.Logger != nil {
			r.Logger.WithError(err).Warn("enqueue finished conversation failed, recording inline")
		}
	}

	_, err := r.Conversations.Record(ctx, transcript, endedAt, duration)
	return err
}
