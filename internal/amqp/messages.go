package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"finsight/internal/classifier"
)

// FeedbackMessage carries one classifier correction through the broker.
type FeedbackMessage struct {
	classifier.Feedback
	Timestamp time.Time `json:"timestamp"`
}

func NewFeedbackMessage(fb classifier.Feedback) *FeedbackMessage {
	return &FeedbackMessage{Feedback: fb, Timestamp: time.Now().UTC()}
}

func (m *FeedbackMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FeedbackMessageFromJSON decodes and checks a message body.
func FeedbackMessageFromJSON(data []byte) (*FeedbackMessage, error) {
	var msg FeedbackMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Description == "" || msg.CorrectCategorySlug == "" {
		return nil, errors.New("feedback message requires description and correct_category_slug")
	}
	return &msg, nil
}
