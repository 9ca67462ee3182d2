package substrate

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/network"
)

func TestComputeReachabilityGrade(t *testing.T) {
	tests := []struct {
		name string
		in   network.Reachability
		want string
	}{
		{"public", network.ReachabilityPublic, GradePublic},
		{"private", network.ReachabilityPrivate, GradePrivate},
		{"unknown", network.ReachabilityUnknown, GradeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeReachabilityGrade(tt.in)
			if got.Grade != tt.want {
				t.Errorf("grade = %q, want %q", got.Grade, tt.want)
			}
		})
	}
}
