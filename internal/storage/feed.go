package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/instance"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// ChangeMessage announces that a cart record was rewritten.
type ChangeMessage struct {
	Instance string `json:"instance"`
	Key      string `json:"key"`
	Version  uint64 `json:"version"`
	Op       string `json:"op"`
}

type feedPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type feedSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error)
}

// Refresher reloads a cart after another process wrote it.
type Refresher interface {
	Key() string
	Refresh(ctx context.Context) (cart.Snapshot, error)
}

// FeedParams configure a RedisFeed.
type FeedParams struct {
	Publisher  feedPublisher
	Subscriber feedSubscriber
	Channel    string
	Instance   string
	Logger     *logger.Logger
}

// RedisFeed carries storage-change signals between processes sharing a
// storage key. Consistency is last writer wins.
type RedisFeed struct {
	pub      feedPublisher
	sub      feedSubscriber
	channel  string
	instance string
	logg     *logger.Logger
}

func NewRedisFeed(params FeedParams) (*RedisFeed, error) {
	if params.Publisher == nil || params.Subscriber == nil {
		return nil, fmt.Errorf("publisher and subscriber required")
	}
	if params.Channel == "" {
		return nil, fmt.Errorf("channel required")
	}
	id := params.Instance
	if id == "" {
		id = instance.GetID()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisFeed{
		pub:      params.Publisher,
		sub:      params.Subscriber,
		channel:  params.Channel,
		instance: id,
		logg:     logg,
	}, nil
}

// Attach publishes every local change of store. Reloads are not echoed.
func (f *RedisFeed) Attach(store *cart.Store) func() {
	key := store.Key()
	return store.Subscribe(func(change cart.Change) {
		if change.Op == cart.OpRefresh || change.Op == cart.OpLoad {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := f.Publish(ctx, key, change); err != nil {
			f.logg.Error(f.logg.WithField(ctx, "event", "cart.change_publish_failed"), "failed to publish cart change", err)
		}
	})
}

func (f *RedisFeed) Publish(ctx context.Context, key string, change cart.Change) error {
	payload, err := json.Marshal(ChangeMessage{
		Instance: f.instance,
		Key:      key,
		Version:  change.Snapshot.Version,
		Op:       string(change.Op),
	})
	if err != nil {
		return err
	}
	return f.pub.Publish(ctx, f.channel, string(payload))
}

// Listen refreshes target whenever another instance reports a write to the
// same key. It returns when ctx is done or the subscription closes.
func (f *RedisFeed) Listen(ctx context.Context, target Refresher) error {
	sub, err := f.sub.Subscribe(ctx, f.channel)
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx = f.logg.WithFields(ctx, map[string]any{"channel": f.channel, "cart_key": target.Key()})
	f.logg.Info(ctx, "cart change feed listening")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			f.handle(ctx, msg.Payload, target)
		}
	}
}

// handle reports whether the message triggered a refresh.
func (f *RedisFeed) handle(ctx context.Context, payload string, target Refresher) bool {
	var msg ChangeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "ignoring malformed cart change message")
		return false
	}
	if msg.Instance == f.instance || msg.Key != target.Key() {
		return false
	}
	if _, err := target.Refresh(ctx); err != nil {
		f.logg.Error(f.logg.WithField(ctx, "event", "cart.refresh_failed"), "failed to refresh cart after remote change", err)
		return false
	}
	f.logg.Debug(f.logg.WithFields(ctx, map[string]any{
		"event":        "cart.refreshed",
		"from":         msg.Instance,
		"peer_version": msg.Version,
	}), "cart refreshed from change feed")
	return true
}
