package ws

import "github.com/pawsafe/internal/model"

type EventType string

const (
	// client → server
	EventSubscribe   EventType = "subscribe"
	EventUnsubscribe EventType = "unsubscribe"

	// server → client
	EventSubscribed   EventType = "subscribed"
	EventUnsubscribed EventType = "unsubscribed"
	EventChange       EventType = "change"
	EventError        EventType = "error"
)

// Topic — что именно слушает подписка.
type Topic string

const (
	TopicThreads       Topic = "threads"
	TopicMessages      Topic = "messages"
	TopicNotifications Topic = "notifications"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type  EventType      `json:"type"`
	Topic Topic          `json:"topic,omitempty"`
	Kind  model.ChatKind `json:"kind,omitempty"`

	// For messages topic
	ChatID string `json:"chat_id,omitempty"`

	// For unsubscribe
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload for change frames is repository.Event of the topic's type.
type OutgoingMessage struct {
	Type           EventType `json:"type"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Topic          Topic     `json:"topic,omitempty"`
	Payload        any       `json:"payload,omitempty"`
}

func errorMessage(subID, text string) OutgoingMessage {
	return OutgoingMessage{Type: EventError, SubscriptionID: subID, Payload: text}
}
