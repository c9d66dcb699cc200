package handler

import (
	"time"

	"disha/internal/dispatch"
)

// RegisteredSubscriberResponse is returned once at registration; Secret is
// never stored or shown again.
type RegisteredSubscriberResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriberResponse is the listing shape.
type SubscriberResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type SubscribersResponse struct {
	Subscribers []SubscriberResponse `json:"subscribers"`
}

func FromSubscribers(subs []dispatch.Subscriber) SubscribersResponse {
	out := SubscribersResponse{Subscribers: make([]SubscriberResponse, 0, len(subs))}
	for _, sub := range subs {
		out.Subscribers = append(out.Subscribers, SubscriberResponse{
			ID:        sub.ID.String(),
			Name:      sub.Name,
			URL:       sub.URL,
			CreatedAt: sub.CreatedAt,
		})
	}
	return out
}

// DeadLetterResponse is one exhausted delivery.
type DeadLetterResponse struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Key       string    `json:"key"`
	Payload   string    `json:"payload"`
	Attempts  int       `json:"attempts"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	DeadAt    time.Time `json:"dead_at"`
}

type DeadLettersResponse struct {
	DeadLetters []DeadLetterResponse `json:"dead_letters"`
}

func FromDeadLetters(letters []dispatch.DeadLetter) DeadLettersResponse {
	out := DeadLettersResponse{DeadLetters: make([]DeadLetterResponse, 0, len(letters))}
	for _, dl := range letters {
		out.DeadLetters = append(out.DeadLetters, DeadLetterResponse{
			ID:        dl.ID.String(),
			Topic:     dl.Topic,
			Key:       dl.Key,
			Payload:   string(dl.Payload),
			Attempts:  dl.Attempts,
			Reason:    dl.Reason,
			CreatedAt: dl.CreatedAt,
			DeadAt:    dl.DeadAt,
		})
	}
	return out
}
