/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

const (
	queueKey        = "autoscorer:queue"
	activeKey       = "autoscorer:active"
	resultKeyPrefix = "autoscorer:results:"

	resultTTL = 24 * time.Hour
)

// Broker is the Redis-backed task queue. Messages travel through a list
// (LPUSH/BRPOP); in-flight metadata lives in a hash so submission can
// inspect what is queued or running.
type Broker struct {
	rdb *redis.Client
}

// NewBroker connects to the given redis URL (redis://host:port/db).
func NewBroker(url string) (*Broker, error) {
	if url == "" {
		url = config.GetBrokerURL()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Newf(errors.CodeExecError, "invalid broker URL %q: %v", url, err)
	}
	return &Broker{rdb: redis.NewClient(opts)}, nil
}

// NewBrokerWithClient wraps an existing client. Tests use it with miniredis.
func NewBrokerWithClient(rdb *redis.Client) *Broker {
	return &Broker{rdb: rdb}
}

func (b *Broker) Close() error {
	return b.rdb.Close()
}

// Ping verifies broker connectivity.
func (b *Broker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Enqueue pushes the message onto the queue and records it as active.
func (b *Broker) Enqueue(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pipe := b.rdb.TxPipeline()
	pipe.LPush(ctx, queueKey, data)
	pipe.HSet(ctx, activeKey, msg.TaskID, data)
	_, err = pipe.Exec(ctx)
	return err
}

// Dequeue blocks up to timeout for the next message. It returns nil when
// the timeout elapses with an empty queue.
func (b *Broker) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	vals, err := b.rdb.BRPop(ctx, timeout, queueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal([]byte(vals[1]), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Active returns all queued or running messages keyed by task id.
func (b *Broker) Active(ctx context.Context) (map[string]*Message, error) {
	raw, err := b.rdb.HGetAll(ctx, activeKey).Result()
	if err != nil {
		return nil, err
	}
	active := make(map[string]*Message, len(raw))
	for id, data := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		active[id] = &msg
	}
	return active, nil
}

// ActiveTaskForWorkspace returns the id of a queued or running task for
// the workspace, or "".
func (b *Broker) ActiveTaskForWorkspace(ctx context.Context, workspace string) (string, error) {
	active, err := b.Active(ctx)
	if err != nil {
		return "", err
	}
	for id, msg := range active {
		if msg.Workspace == workspace {
			return id, nil
		}
	}
	return "", nil
}

// Done removes the task from the active set and caches its final envelope
// for quick status lookups.
func (b *Broker) Done(ctx context.Context, taskID string, envelope any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	pipe := b.rdb.TxPipeline()
	pipe.HDel(ctx, activeKey, taskID)
	pipe.Set(ctx, resultKeyPrefix+taskID, data, resultTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// CachedResult returns the final envelope stored by Done, or nil when the
// task is unknown or still running.
func (b *Broker) CachedResult(ctx context.Context, taskID string) (map[string]any, error) {
	data, err := b.rdb.Get(ctx, resultKeyPrefix+taskID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var envelope map[string]any
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return nil, err
	}
	return envelope, nil
}
