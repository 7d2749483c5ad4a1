package action

import (
	"context"

	"evolve/box"
)

// BroadcastTime 通知其他单元本单元已到达当前时间
type BroadcastTime struct{}

func (BroadcastTime) Name() string { return "BroadcastTime" }

func (BroadcastTime) Metadata() Metadata { return Metadata{Reads: []box.Key{Time.Key()}} }

func (BroadcastTime) Apply(_ context.Context, b *box.Box, _ *Cache, inbox *Inbox) (Signal, error) {
	now, err := box.Get(b, Time)
	if err != nil {
		return Continue, err
	}
	return Continue, inbox.Broadcast(TimeReached{Time: now})
}

// AwaitPeers 等待所有其他单元到达当前时间
// 消息不足时返回 Repeat，收到的消息保留到凑齐为止
type AwaitPeers struct{}

func (AwaitPeers) Name() string { return "AwaitPeers" }

func (AwaitPeers) Metadata() Metadata { return Metadata{Reads: []box.Key{Time.Key()}} }

func (AwaitPeers) Apply(_ context.Context, b *box.Box, _ *Cache, inbox *Inbox) (Signal, error) {
	now, err := box.Get(b, Time)
	if err != nil {
		return Continue, err
	}
	match := func(m Message) bool {
		r, ok := m.Value.(TimeReached)
		return ok && r.Time.Equal(now)
	}
	peers := map[int]bool{}
	for _, m := range inbox.messages {
		if match(m) {
			peers[m.From] = true
		}
	}
	if len(peers) < inbox.Elements()-1 {
		return Repeat, nil
	}
	inbox.Take(match)
	return Continue, nil
}
