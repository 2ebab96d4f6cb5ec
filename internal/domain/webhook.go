package domain

// WebhookTopic identifies a platform event type.
type WebhookTopic string

// Topics the app must stay subscribed to: the three compliance topics plus
// the uninstall lifecycle event.
const (
	TopicCustomersDataRequest WebhookTopic = "customers/data_request"
	TopicCustomersRedact      WebhookTopic = "customers/redact"
	TopicShopRedact           WebhookTopic = "shop/redact"
	TopicAppUninstalled       WebhookTopic = "app/uninstalled"
)

// MandatoryTopics returns the topic set every installation subscribes to.
func MandatoryTopics() []WebhookTopic {
	return []WebhookTopic{
		TopicCustomersDataRequest,
		TopicCustomersRedact,
		TopicShopRedact,
		TopicAppUninstalled,
	}
}

// WebhookEvent is one delivered webhook. Transient: it is dispatched to a
// handler and never persisted.
type WebhookEvent struct {
	Topic    string `json:"topic"`
	Shop     string `json:"shop"`
	Payload  []byte `json:"payload"`
	Verified bool   `json:"verified"`
}
