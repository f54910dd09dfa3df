package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMembership answers group membership from a redis set, for
// deployments where the chat platform already mirrors its rosters there.
// Key layout: group:<id>:members.
type RedisMembership struct {
	client *redis.Client
}

func NewRedisMembership(addr string) *RedisMembership {
	return &RedisMembership{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (m *RedisMembership) key(groupID string) string {
	return fmt.Sprintf("group:%s:members", groupID)
}

func (m *RedisMembership) IsMember(groupID, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := m.client.SIsMember(ctx, m.key(groupID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis membership %s/%s: %w", groupID, userID, err)
	}
	return ok, nil
}

// AddMember registers a participant; used when the shell syncs a roster.
func (m *RedisMembership) AddMember(groupID, userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.client.SAdd(ctx, m.key(groupID), userID).Err()
}

func (m *RedisMembership) Close() error {
	return m.client.Close()
}
