// Package alerts turns domain events into alert notification jobs,
// filtered through user preferences.
package alerts

import (
	"fmt"

	"github.com/bookline/notifier/internal/domain"
)

// ProcessorConfig contains classification thresholds.
type ProcessorConfig struct {
	// ExpirationWindowDays is how close to expiry an item must be
	// before an imminent_expiration event raises an alert.
	ExpirationWindowDays int
}

// DefaultProcessorConfig returns default classification thresholds.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{ExpirationWindowDays: 3}
}

// Verdict is the outcome of classifying an event.
type Verdict struct {
	ShouldAlert bool
	Severity    domain.Severity
	Title       string
	Detail      string
	Channels    []domain.ChannelType
}

// Processor classifies events into alert verdicts. Classification is
// pure: the same event always yields the same verdict.
type Processor struct {
	config ProcessorConfig
}

// NewProcessor creates a new event processor.
func NewProcessor(config ProcessorConfig) *Processor {
	if config.ExpirationWindowDays <= 0 {
		config.ExpirationWindowDays = DefaultProcessorConfig().ExpirationWindowDays
	}
	return &Processor{config: config}
}

// Classify applies the rule for the event's type. Unknown event types
// fall through to the pass-through rule, so new producers degrade to
// severity-as-submitted rather than being dropped.
func (p *Processor) Classify(event domain.NotificationEvent) Verdict {
	switch event.Type {
	case domain.EventTypeLowStock:
		return p.classifyLowStock(event)
	case domain.EventTypeImminentExpiration:
		return p.classifyImminentExpiration(event)
	default:
		return p.classifyPassThrough(event)
	}
}

// classifyLowStock alerts when current stock has fallen below the
// threshold, scaling severity inversely with what remains.
func (p *Processor) classifyLowStock(event domain.NotificationEvent) Verdict {
	current, okCurrent := numberField(event.Data, "current_stock")
	threshold, okThreshold := numberField(event.Data, "threshold")
	if !okCurrent || !okThreshold || threshold <= 0 {
		return Verdict{}
	}

	if current >= threshold {
		return Verdict{}
	}

	var severity domain.Severity
	switch {
	case current <= 0:
		severity = domain.SeverityCritical
	case current/threshold < 0.25:
		severity = domain.SeverityHigh
	default:
		severity = domain.SeverityMedium
	}

	item := stringField(event.Data, "item_name")
	if item == "" {
		item = "item"
	}

	return Verdict{
		ShouldAlert: true,
		Severity:    severity,
		Title:       fmt.Sprintf("Low stock: %s", item),
		Detail:      fmt.Sprintf("%.0f left of a threshold of %.0f", current, threshold),
		Channels:    candidateChannels(severity),
	}
}

// classifyImminentExpiration alerts when the item expires within the
// configured window.
func (p *Processor) classifyImminentExpiration(event domain.NotificationEvent) Verdict {
	days, ok := numberField(event.Data, "days_until_expiration")
	if !ok {
		return Verdict{}
	}

	if days > float64(p.config.ExpirationWindowDays) {
		return Verdict{}
	}

	severity := domain.SeverityMedium
	if days <= 1 {
		severity = domain.SeverityHigh
	}

	item := stringField(event.Data, "item_name")
	if item == "" {
		item = "item"
	}

	return Verdict{
		ShouldAlert: true,
		Severity:    severity,
		Title:       fmt.Sprintf("Expiring soon: %s", item),
		Detail:      fmt.Sprintf("%.0f day(s) until expiration", days),
		Channels:    candidateChannels(severity),
	}
}

// classifyPassThrough alerts with the severity the producer submitted.
// Covers booking_overload and any event type added upstream before this
// service learns a dedicated rule for it.
func (p *Processor) classifyPassThrough(event domain.NotificationEvent) Verdict {
	severity := event.Severity
	if !severity.IsValid() {
		severity = domain.SeverityMedium
	}

	title := stringField(event.Data, "title")
	if title == "" {
		title = fmt.Sprintf("Alert: %s", event.Type)
	}

	return Verdict{
		ShouldAlert: true,
		Severity:    severity,
		Title:       title,
		Detail:      stringField(event.Data, "detail"),
		Channels:    candidateChannels(severity),
	}
}

// candidateChannels widens the delivery surface with severity. The
// preference filter narrows it down per user afterwards.
func candidateChannels(severity domain.Severity) []domain.ChannelType {
	switch {
	case severity.AtLeast(domain.SeverityCritical):
		return domain.AllChannelTypes()
	case severity.AtLeast(domain.SeverityHigh):
		return []domain.ChannelType{
			domain.ChannelTypeInApp,
			domain.ChannelTypeEmail,
			domain.ChannelTypePush,
		}
	default:
		return []domain.ChannelType{
			domain.ChannelTypeInApp,
			domain.ChannelTypeEmail,
		}
	}
}

// numberField reads a numeric value from event data. JSON decoding
// yields float64; ints appear when events are built in-process.
func numberField(data map[string]any, key string) (float64, bool) {
	v, ok := data[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
