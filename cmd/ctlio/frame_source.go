package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/ctlio/collab"
	"go.viam.com/ctlio/imufactor"
	"go.viam.com/ctlio/scan"
)

// wirePoint is the JSON shape of one LIDAR return in the NDJSON frame
// stream, mirroring scan.Point's sensor-frame fields.
type wirePoint struct {
	Raw       [3]float64 `json:"raw"`
	Timestamp float64    `json:"timestamp"`
	BeamID    int        `json:"beam_id"`
	Aux       float64    `json:"aux"`
}

type wireIMU struct {
	Timestamp float64    `json:"timestamp"`
	LinAcc    [3]float64 `json:"lin_acc"`
	AngVel    [3]float64 `json:"ang_vel"`
}

type wirePose struct {
	Timestamp float64    `json:"timestamp"`
	TMeasured [16]float64 `json:"t_measured"`
}

// wireFrame is one NDJSON line of the inbound frame message spec.md §6
// describes.
type wireFrame struct {
	EvalTime float64     `json:"eval_time"`
	Points   []wirePoint `json:"points"`
	IMUs     []wireIMU   `json:"imus"`
	Poses    []wirePose  `json:"poses"`
}

// ndjsonFrameSource reads collab.InboundFrame values from a newline-
// delimited JSON stream, the concrete adapter cmd/ctlio uses to satisfy
// collab.FrameSource for its own "run" subcommand. It is a CLI concern,
// not a claim about any particular sensor's file format; dataset-specific
// parsing stays out of scope per spec.md §1.
type ndjsonFrameSource struct {
	scanner *bufio.Scanner
}

func newNDJSONFrameSource(r io.Reader) *ndjsonFrameSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return &ndjsonFrameSource{scanner: scanner}
}

// Next implements collab.FrameSource.
func (s *ndjsonFrameSource) Next(ctx context.Context) (collab.InboundFrame, error) {
	if err := ctx.Err(); err != nil {
		return collab.InboundFrame{}, errors.Wrap(err, "frame source cancelled")
	}
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wf wireFrame
		if err := json.Unmarshal(line, &wf); err != nil {
			return collab.InboundFrame{}, errors.Wrap(err, "decoding frame line")
		}
		return wf.toInbound(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return collab.InboundFrame{}, errors.Wrap(err, "reading frame stream")
	}
	return collab.InboundFrame{}, io.EOF
}

func (wf wireFrame) toInbound() collab.InboundFrame {
	points := make([]scan.Point, len(wf.Points))
	for i, p := range wf.Points {
		points[i] = scan.Point{
			Raw:       r3.Vector{X: p.Raw[0], Y: p.Raw[1], Z: p.Raw[2]},
			Timestamp: p.Timestamp,
			BeamID:    p.BeamID,
			Aux:       p.Aux,
		}
	}
	imus := make([]imufactor.Sample, len(wf.IMUs))
	for i, s := range wf.IMUs {
		imus[i] = imufactor.Sample{
			Timestamp: s.Timestamp,
			LinAcc:    r3.Vector{X: s.LinAcc[0], Y: s.LinAcc[1], Z: s.LinAcc[2]},
			AngVel:    r3.Vector{X: s.AngVel[0], Y: s.AngVel[1], Z: s.AngVel[2]},
		}
	}
	poses := make([]collab.PoseObservation, len(wf.Poses))
	for i, p := range wf.Poses {
		poses[i] = collab.PoseObservation{Timestamp: p.Timestamp, TMeasured: p.TMeasured}
	}
	return collab.InboundFrame{
		EvalTime: wf.EvalTime,
		Points:   points,
		IMUs:     imus,
		Poses:    poses,
	}
}
