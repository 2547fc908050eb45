package status

import (
	"testing"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestStatusAfterIncidentOpened(t *testing.T) {
	tests := []struct {
		current  domain.ServiceStatus
		expected domain.ServiceStatus
	}{
		{domain.ServiceStatusOperational, domain.ServiceStatusDegraded},
		{domain.ServiceStatusDegraded, domain.ServiceStatusDegraded},
		{domain.ServiceStatusPartialOutage, domain.ServiceStatusPartialOutage},
		{domain.ServiceStatusMajorOutage, domain.ServiceStatusMajorOutage},
	}

	for _, tt := range tests {
		t.Run(string(tt.current), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusAfterIncidentOpened(tt.current))
		})
	}
}

func TestStatusAfterIncidentClosed(t *testing.T) {
	assert.Equal(t, domain.ServiceStatusOperational, statusAfterIncidentClosed(domain.ServiceStatusMajorOutage, 0))
	assert.Equal(t, domain.ServiceStatusMajorOutage, statusAfterIncidentClosed(domain.ServiceStatusMajorOutage, 2))
}

func TestPlanStatusChange(t *testing.T) {
	tests := []struct {
		name      string
		next      domain.ServiceStatus
		openCount int
		expected  statusChangePlan
	}{
		{"operational resolves open incidents", domain.ServiceStatusOperational, 3, statusChangePlan{resolveOpen: true}},
		{"operational with nothing open", domain.ServiceStatusOperational, 0, statusChangePlan{}},
		{"outage without open incident", domain.ServiceStatusPartialOutage, 0, statusChangePlan{autoIncident: true}},
		{"outage with open incident", domain.ServiceStatusMajorOutage, 1, statusChangePlan{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, planStatusChange(tt.next, tt.openCount))
		})
	}
}
