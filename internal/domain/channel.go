package domain

// ChannelType identifies a notification transport.
type ChannelType string

// Supported channel types.
const (
	ChannelTypeEmail    ChannelType = "email"
	ChannelTypeSMS      ChannelType = "sms"
	ChannelTypePush     ChannelType = "push"
	ChannelTypeInApp    ChannelType = "in_app"
	ChannelTypeWhatsApp ChannelType = "whatsapp"
)

// AllChannelTypes lists every supported channel type.
func AllChannelTypes() []ChannelType {
	return []ChannelType{
		ChannelTypeEmail,
		ChannelTypeSMS,
		ChannelTypePush,
		ChannelTypeInApp,
		ChannelTypeWhatsApp,
	}
}

// IsValid reports whether t is a known channel type.
func (t ChannelType) IsValid() bool {
	switch t {
	case ChannelTypeEmail, ChannelTypeSMS, ChannelTypePush, ChannelTypeInApp, ChannelTypeWhatsApp:
		return true
	}
	return false
}

// HealthStatus reports whether a channel adapter is ready to send.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}
