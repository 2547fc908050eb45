package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotVersion_Before(t *testing.T) {
	tests := []struct {
		name  string
		v     SnapshotVersion
		other SnapshotVersion
		want  bool
	}{
		{"lower horizon", SnapshotVersion{Horizon: 9, InFlight: 0}, SnapshotVersion{Horizon: 10, InFlight: 3}, true},
		{"higher horizon", SnapshotVersion{Horizon: 11, InFlight: 5}, SnapshotVersion{Horizon: 10, InFlight: 0}, false},
		{"more in flight", SnapshotVersion{Horizon: 10, InFlight: 2}, SnapshotVersion{Horizon: 10, InFlight: 1}, true},
		{"fewer in flight", SnapshotVersion{Horizon: 10, InFlight: 0}, SnapshotVersion{Horizon: 10, InFlight: 1}, false},
		{"equal", SnapshotVersion{Horizon: 10, InFlight: 1}, SnapshotVersion{Horizon: 10, InFlight: 1}, false},
		{"zero before any read", SnapshotVersion{}, SnapshotVersion{Horizon: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Before(tt.other))
		})
	}
}
