package substrate

import (
	"github.com/libp2p/go-libp2p/core/network"
)

// ReachabilityGrade summarizes autonat's public-reachability verdict for
// this node in a form suitable for logging and the optional status
// surface, without exposing libp2p's network.Reachability type to callers
// that only need a label.
type ReachabilityGrade struct {
	Grade       string
	Label       string
	Description string
}

const (
	GradePublic  = "A"
	GradePrivate = "D"
	GradeUnknown = "F"
)

// ComputeReachabilityGrade classifies the node from the reachability value
// autonat reports via the host's event bus. This replaces interface/STUN
// probing with the single signal the substrate's NAT-status sub-behavior
// already produces.
func ComputeReachabilityGrade(r network.Reachability) ReachabilityGrade {
	switch r {
	case network.ReachabilityPublic:
		return ReachabilityGrade{Grade: GradePublic, Label: "Public", Description: "autonat reports public reachability"}
	case network.ReachabilityPrivate:
		return ReachabilityGrade{Grade: GradePrivate, Label: "Private", Description: "autonat reports NAT/firewalled reachability"}
	default:
		return ReachabilityGrade{Grade: GradeUnknown, Label: "Unknown", Description: "autonat has not yet determined reachability"}
	}
}
