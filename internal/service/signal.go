package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/hook"
)

const channelPrefix = "heritage:"

func channelName(c domain.Collection) string {
	return channelPrefix + string(c)
}

// SignalService publishes document changes on redis and streams them back
// to realtime subscribers.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event domain.ChangeEvent) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channelName(event.Collection), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Register publishes a change event after every save and delete.
func (s *SignalService) Register(hooks *hook.Registry) {
	for _, c := range domain.Collections() {
		hooks.Add(c, hook.AfterSave, s.publisher(domain.ChangeSaved))
		hooks.Add(c, hook.OnDelete, s.publisher(domain.ChangeDeleted))
	}
}

func (s *SignalService) publisher(t domain.ChangeType) hook.Func {
	return func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		err := s.Publish(ctx, domain.ChangeEvent{Type: t, Collection: doc.Collection(), ID: doc.DocID()})
		if err != nil {
			slog.WarnContext(ctx, "failed to publish change",
				slog.String("collection", string(doc.Collection())),
				slog.String("id", doc.DocID()),
				slog.String("error", err.Error()),
				slog.String("module", "signal"),
			)
		}
		return doc, nil
	}
}

// Realtime forwards change events of the collections last received on input
// to output. It closes output when ctx ends or input is closed.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []domain.Collection, output chan<- domain.ChangeEvent) {
	defer close(output)

	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	var current []string
	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case collections, ok := <-input:
			if !ok {
				return
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					s.logError(ctx, "unsubscribe", err)
				}
			}
			current = current[:0]
			for _, c := range collections {
				if c.Valid() {
					current = append(current, channelName(c))
				}
			}
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					s.logError(ctx, "subscribe", err)
				}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if !strings.HasPrefix(msg.Channel, channelPrefix) {
				continue
			}
			var event domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logError(ctx, "decode", err)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *SignalService) logError(ctx context.Context, op string, err error) {
	slog.ErrorContext(ctx, "realtime "+op+" failed",
		slog.String("error", err.Error()),
		slog.String("module", "signal"),
	)
}
