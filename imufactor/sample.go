package imufactor

import "github.com/golang/geo/r3"

// Sample is one inertial measurement, per spec.md §6's inbound IMUData.
type Sample struct {
	Timestamp float64
	LinAcc    r3.Vector
	AngVel    r3.Vector
}
