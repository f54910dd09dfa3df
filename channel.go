package main

import (
	"fmt"
	"log"
	"sync"
)

// Visibility classes for channel participants. Derived from the player's
// living role at join time; death demotes to spectator for good.
type Visibility string

const (
	VisNormal    Visibility = "normal"
	VisWerewolf  Visibility = "werewolf"
	VisSpectator Visibility = "spectator"
)

// MessageType classifies a chat message by who may see it.
type MessageType string

const (
	MsgNormal    MessageType = "normal"
	MsgWerewolf  MessageType = "werewolf"
	MsgSpectator MessageType = "spectator"
)

// MembershipStore answers whether a participant belongs to a chat group.
type MembershipStore interface {
	IsMember(groupID, userID string) (bool, error)
}

type channelMember struct {
	connectionID string
	visibility   Visibility
}

// Channel is the audience router for one group's session: it decides which
// connected participant may send and see which message during which phase.
type Channel struct {
	groupID    string
	game       *Game
	membership MembershipStore

	mu      sync.Mutex
	members map[string]*channelMember // participant id -> roster entry
}

func NewChannel(groupID string, game *Game, membership MembershipStore) *Channel {
	return &Channel{
		groupID:    groupID,
		game:       game,
		membership: membership,
		members:    make(map[string]*channelMember),
	}
}

// Join registers a participant's connection. Group membership is required;
// visibility is derived from the player's current seat.
func (c *Channel) Join(userID, connectionID string) error {
	ok, err := c.membership.IsMember(c.groupID, userID)
	if err != nil {
		return fmt.Errorf("join channel %s: %w", c.groupID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is not a member of group %s", ErrAuthorization, userID, c.groupID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[userID] = &channelMember{
		connectionID: connectionID,
		visibility:   c.game.SeatVisibility(userID),
	}
	log.Printf("Channel %s: %s joined as %s", c.groupID, userID, c.members[userID].visibility)
	return nil
}

// visibilityOf re-checks a member against the roster: death permanently
// demotes to spectator, never the other way.
func (c *Channel) visibilityOf(userID string, m *channelMember) Visibility {
	if m.visibility != VisSpectator && !c.game.PlayerAlive(userID) {
		m.visibility = VisSpectator
	}
	return m.visibility
}

// Leave removes the participant. Returns true when the roster is now empty
// and the channel should be torn down.
func (c *Channel) Leave(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, userID)
	return len(c.members) == 0
}

// OutboundMessageType classifies what the sender is about to send. Outside
// night (or once the session is over) everything is normal talk; at night
// spectators whisper among themselves, werewolves get the pack channel, and
// a living non-werewolf may not speak.
func (c *Channel) OutboundMessageType(senderID string) (MessageType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.members[senderID]
	if !ok {
		return "", fmt.Errorf("%w: %s has not joined channel %s", ErrAuthorization, senderID, c.groupID)
	}

	// Finished sessions fall out of the night rule along with day and pre.
	_, phase := c.game.phases.Current()
	if phase != PhaseNight {
		return MsgNormal, nil
	}
	switch c.visibilityOf(senderID, m) {
	case VisSpectator:
		return MsgSpectator, nil
	case VisWerewolf:
		return MsgWerewolf, nil
	}
	return "", fmt.Errorf("%w: the living may not speak at night", ErrAuthorization)
}

// AudienceFor returns the connection ids allowed to receive a message type.
// nil means no restriction (broadcast to the whole roster). Spectators see
// everything, including the werewolf channel.
func (c *Channel) AudienceFor(messageType MessageType) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if messageType == MsgNormal {
		return nil
	}
	// Non-nil even when empty: a restricted message with nobody eligible
	// must not fall back to a full broadcast.
	conns := []string{}
	for userID, m := range c.members {
		vis := c.visibilityOf(userID, m)
		if vis == VisSpectator || (messageType == MsgWerewolf && vis == VisWerewolf) {
			conns = append(conns, m.connectionID)
		}
	}
	return conns
}

// InboundMessageTypesFor returns the message types a participant may
// currently receive; used to filter history queries. Mirrors the audience
// rule.
func (c *Channel) InboundMessageTypesFor(userID string) []MessageType {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.members[userID]
	if !ok {
		return nil
	}
	switch c.visibilityOf(userID, m) {
	case VisSpectator:
		return []MessageType{MsgNormal, MsgWerewolf, MsgSpectator}
	case VisWerewolf:
		return []MessageType{MsgNormal, MsgWerewolf}
	default:
		return []MessageType{MsgNormal}
	}
}

// ChannelTable owns the live channels, one per group with a running
// session.
type ChannelTable struct {
	mu         sync.Mutex
	channels   map[string]*Channel
	membership MembershipStore
}

func NewChannelTable(membership MembershipStore) *ChannelTable {
	return &ChannelTable{channels: make(map[string]*Channel), membership: membership}
}

// Open returns the group's channel, creating it for the given session if
// none exists yet.
func (ct *ChannelTable) Open(groupID string, game *Game) *Channel {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ch, ok := ct.channels[groupID]; ok {
		return ch
	}
	ch := NewChannel(groupID, game, ct.membership)
	ct.channels[groupID] = ch
	return ch
}

// Get returns the live channel for a group.
func (ct *ChannelTable) Get(groupID string) (*Channel, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ch, ok := ct.channels[groupID]
	if !ok {
		return nil, fmt.Errorf("%w: channel %s", ErrNotFound, groupID)
	}
	return ch, nil
}

// Leave drops a participant and tears the channel down when the last one is
// gone.
func (ct *ChannelTable) Leave(groupID, userID string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ch, ok := ct.channels[groupID]
	if !ok {
		return
	}
	if ch.Leave(userID) {
		delete(ct.channels, groupID)
		log.Printf("Channel %s torn down (roster empty)", groupID)
	}
}
