package entity

import "time"

type PushKeys struct {
	P256dh string `json:"p256dh" firestore:"p256dh" bson:"p256dh"`
	Auth   string `json:"auth" firestore:"auth" bson:"auth"`
}

// PushSubscription is an opaque delivery endpoint. Browser subscriptions carry
// Endpoint and Keys; FCM registrations carry Token.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint,omitempty" firestore:"endpoint,omitempty" bson:"endpoint,omitempty"`
	Keys      PushKeys  `json:"keys" firestore:"keys" bson:"keys"`
	Token     string    `json:"token,omitempty" firestore:"token,omitempty" bson:"token,omitempty"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt" bson:"createdAt"`
}

// Identity is the deduplication key for support subscriptions.
func (s *PushSubscription) Identity() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return s.Token
}

// PushNotification is the payload handed to a push provider.
type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Tag   string `json:"tag"`
	Badge string `json:"badge,omitempty"`
	Icon  string `json:"icon,omitempty"`
}
