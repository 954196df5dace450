package alerts

import (
	"testing"

	"github.com/bookline/notifier/internal/domain"
	"github.com/stretchr/testify/assert"
)

func lowStockEvent(current, threshold float64) domain.NotificationEvent {
	return domain.NotificationEvent{
		ID:     "evt_1",
		Type:   domain.EventTypeLowStock,
		UserID: "user_1",
		Data: map[string]any{
			"item_name":     "Shampoo",
			"current_stock": current,
			"threshold":     threshold,
		},
	}
}

func TestClassify_LowStock(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())

	tests := []struct {
		name        string
		current     float64
		threshold   float64
		shouldAlert bool
		severity    domain.Severity
	}{
		{"above threshold", 20, 10, false, ""},
		{"at threshold", 10, 10, false, ""},
		{"below threshold", 6, 10, true, domain.SeverityMedium},
		{"under quarter", 2, 10, true, domain.SeverityHigh},
		{"exactly quarter", 2.5, 10, true, domain.SeverityMedium},
		{"zero stock", 0, 10, true, domain.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := p.Classify(lowStockEvent(tt.current, tt.threshold))

			assert.Equal(t, tt.shouldAlert, verdict.ShouldAlert)
			if tt.shouldAlert {
				assert.Equal(t, tt.severity, verdict.Severity)
				assert.Contains(t, verdict.Title, "Shampoo")
				assert.NotEmpty(t, verdict.Channels)
			}
		})
	}
}

func TestClassify_LowStock_MissingFields(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())

	verdict := p.Classify(domain.NotificationEvent{
		Type: domain.EventTypeLowStock,
		Data: map[string]any{"item_name": "Shampoo"},
	})

	assert.False(t, verdict.ShouldAlert)
}

func TestClassify_ImminentExpiration(t *testing.T) {
	p := NewProcessor(ProcessorConfig{ExpirationWindowDays: 3})

	tests := []struct {
		name        string
		days        float64
		shouldAlert bool
		severity    domain.Severity
	}{
		{"outside window", 5, false, ""},
		{"at window edge", 3, true, domain.SeverityMedium},
		{"two days", 2, true, domain.SeverityMedium},
		{"tomorrow", 1, true, domain.SeverityHigh},
		{"today", 0, true, domain.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := p.Classify(domain.NotificationEvent{
				Type: domain.EventTypeImminentExpiration,
				Data: map[string]any{
					"item_name":             "Hair dye",
					"days_until_expiration": tt.days,
				},
			})

			assert.Equal(t, tt.shouldAlert, verdict.ShouldAlert)
			if tt.shouldAlert {
				assert.Equal(t, tt.severity, verdict.Severity)
			}
		})
	}
}

func TestClassify_BookingOverload_PassThrough(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())

	verdict := p.Classify(domain.NotificationEvent{
		Type:     domain.EventTypeBookingOverload,
		Severity: domain.SeverityHigh,
		Data:     map[string]any{"title": "Overbooked Saturday"},
	})

	assert.True(t, verdict.ShouldAlert)
	assert.Equal(t, domain.SeverityHigh, verdict.Severity)
	assert.Equal(t, "Overbooked Saturday", verdict.Title)
}

func TestClassify_UnknownType_DefaultsToMedium(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())

	verdict := p.Classify(domain.NotificationEvent{
		Type:     domain.EventType("new_thing"),
		Severity: domain.Severity("bogus"),
	})

	assert.True(t, verdict.ShouldAlert)
	assert.Equal(t, domain.SeverityMedium, verdict.Severity)
}

func TestClassify_Deterministic(t *testing.T) {
	p := NewProcessor(DefaultProcessorConfig())
	event := lowStockEvent(2, 10)

	first := p.Classify(event)
	second := p.Classify(event)

	assert.Equal(t, first, second)
}

func TestCandidateChannels_ScaleWithSeverity(t *testing.T) {
	assert.Len(t, candidateChannels(domain.SeverityLow), 2)
	assert.Len(t, candidateChannels(domain.SeverityMedium), 2)
	assert.Len(t, candidateChannels(domain.SeverityHigh), 3)
	assert.Len(t, candidateChannels(domain.SeverityCritical), len(domain.AllChannelTypes()))
}

func TestNumberField(t *testing.T) {
	data := map[string]any{
		"float": 2.5,
		"int":   3,
		"text":  "nope",
	}

	v, ok := numberField(data, "float")
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)

	v, ok = numberField(data, "int")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = numberField(data, "text")
	assert.False(t, ok)

	_, ok = numberField(data, "missing")
	assert.False(t, ok)
}
