package submanager

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/submanager/model"
)

// Field limits.
const (
	MaxTopicNameLength = 128
	MaxUsernameLength  = 64
	MinPasswordLength  = 4
)

// TopicRequest is the payload for creating or renaming a topic.
type TopicRequest struct {
	Name string `json:"name"`
}

// Validate checks the topic payload.
func (m TopicRequest) Validate() error {
	return validationError(validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, MaxTopicNameLength)),
	))
}

// SubscriptionRequest is the payload for creating a subscription.
// Active defaults to true when omitted.
type SubscriptionRequest struct {
	Topics  []string  `json:"topics"`
	QoS     model.QoS `json:"qos"`
	Durable bool      `json:"durable"`
	Active  *bool     `json:"active,omitempty"`
}

// Validate checks the shape of the payload. Topic existence is checked by
// the manager against the repository.
func (m SubscriptionRequest) Validate() error {
	return validationError(validation.ValidateStruct(&m,
		validation.Field(&m.Topics,
			validation.Required.Error("topics must not be empty"),
			validation.Each(validation.Required, validation.Length(1, MaxTopicNameLength)),
		),
		validation.Field(&m.QoS, validation.Required, validation.In(qosLevels()...)),
	))
}

// SubscriptionUpdate is a partial subscription update. Nil fields keep
// their stored value.
type SubscriptionUpdate struct {
	Topics  []string   `json:"topics,omitempty"`
	QoS     *model.QoS `json:"qos,omitempty"`
	Durable *bool      `json:"durable,omitempty"`
	Active  *bool      `json:"active,omitempty"`
}

// Validate checks the fields present in the update.
func (m SubscriptionUpdate) Validate() error {
	return validationError(validation.ValidateStruct(&m,
		validation.Field(&m.Topics,
			validation.When(m.Topics != nil, validation.Required.Error("topics must not be empty")),
			validation.Each(validation.Required, validation.Length(1, MaxTopicNameLength)),
		),
		validation.Field(&m.QoS, validation.NilOrNotEmpty, validation.In(qosLevels()...)),
	))
}

// UserRequest is the payload for creating a user.
type UserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Active   *bool  `json:"active,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Validate checks the user payload.
func (m UserRequest) Validate() error {
	return validationError(validation.ValidateStruct(&m,
		validation.Field(&m.Username, validation.Required, validation.Length(1, MaxUsernameLength)),
		validation.Field(&m.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
	))
}

// UserUpdate is a partial user update. Password carries plaintext.
type UserUpdate struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Active   *bool   `json:"active,omitempty"`
	IsAdmin  *bool   `json:"isAdmin,omitempty"`
}

// Validate checks the fields present in the update.
func (m UserUpdate) Validate() error {
	return validationError(validation.ValidateStruct(&m,
		validation.Field(&m.Username, validation.NilOrNotEmpty, validation.Length(1, MaxUsernameLength)),
		validation.Field(&m.Password, validation.NilOrNotEmpty, validation.Length(MinPasswordLength, 0)),
	))
}

func qosLevels() []interface{} {
	levels := make([]interface{}, 0, len(model.QoSLevels))
	for _, q := range model.QoSLevels {
		levels = append(levels, q)
	}
	return levels
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	return NewErrorWithCause(ErrCodeValidation, err.Error(), err)
}
