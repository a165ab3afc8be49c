// Package collab specifies the external-collaborator interfaces spec.md §1
// and §6 name but explicitly place out of scope: sensor ingestion, a
// simulator, and result publishing. Only their interfaces are defined here,
// mirroring the teacher's habit of describing a component boundary (e.g.
// components/camera.Camera) as an interface even when a concrete
// implementation lives elsewhere or nowhere in this repo.
package collab

import (
	"context"

	"go.viam.com/ctlio/imufactor"
	"go.viam.com/ctlio/scan"
)

// PoseObservation is an externally measured pose sample, the `poses` field
// of the inbound frame message in spec.md §6.
type PoseObservation struct {
	Timestamp   float64
	TMeasured   [16]float64 // row-major 4x4
}

// InboundFrame is the wire shape spec.md §6 "Inbound frame" names.
type InboundFrame struct {
	EvalTime float64
	Points   []scan.Point
	IMUs     []imufactor.Sample
	Poses    []PoseObservation
}

// FrameSource yields inbound frames in monotonic input order, per spec.md
// §5 "Ordering". A concrete FrameSource (dataset readers, ROS bag
// ingestion, live driver plumbing) is a collaborator outside this engine's
// scope; this repo consumes whatever satisfies the interface.
type FrameSource interface {
	// Next blocks until the next frame is available, or returns io.EOF once
	// the source is exhausted, or a wrapped context error on cancellation.
	Next(ctx context.Context) (InboundFrame, error)
}

// Simulator synthesizes LIDAR/IMU data, e.g. by ray-casting against a
// known scene, and exposes the result as a FrameSource. Left as an
// interface: spec.md §1 places "a simulator that synthesizes LIDAR/IMU
// data by ray-casting against axis-aligned walls" out of scope.
type Simulator interface {
	FrameSource
	Reset() error
}

// Publisher receives a per-frame Summary for visualization or downstream
// messaging. Left as an interface for the same reason as Simulator:
// spec.md §1 places "visualization and message publishing" out of scope.
type Publisher interface {
	Publish(ctx context.Context, frameIndex int, success bool, keypoints, correctedPoints []scan.Point) error
}
