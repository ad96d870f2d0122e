// Package angle computes interior joint angles from 2-D pose keypoints.
package angle

import (
	"math"

	"github.com/andresmejia3/biomech/internal/types"
)

// Between returns the interior angle at b, formed by the rays b->a and b->c, in degrees [0,180].
// The result is meaningless when b coincides with a or c; use Joint when keypoints may be missing.
func Between(a, b, c types.Point2D) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg := math.Abs(radians * 180 / math.Pi)
	// Two bearings can differ by up to 360 degrees; only the smaller included angle is a joint angle.
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// Triple names the landmarks that form a joint angle. Vertex is the joint itself.
type Triple struct {
	Proximal types.Landmark
	Vertex   types.Landmark
	Distal   types.Landmark
}

// Joints maps every tracked joint to its landmarks.
// Shoulders use the wrist as distal point so that the elbow landmark only feeds the elbow angle.
var Joints = [types.NumJoints]Triple{
	types.LeftKneeAngle:      {types.LeftHip, types.LeftKnee, types.LeftAnkle},
	types.RightKneeAngle:     {types.RightHip, types.RightKnee, types.RightAnkle},
	types.LeftHipAngle:       {types.LeftShoulder, types.LeftHip, types.LeftKnee},
	types.RightHipAngle:      {types.RightShoulder, types.RightHip, types.RightKnee},
	types.LeftElbowAngle:     {types.LeftShoulder, types.LeftElbow, types.LeftWrist},
	types.RightElbowAngle:    {types.RightShoulder, types.RightElbow, types.RightWrist},
	types.LeftShoulderAngle:  {types.LeftHip, types.LeftShoulder, types.LeftWrist},
	types.RightShoulderAngle: {types.RightHip, types.RightShoulder, types.RightWrist},
}

// Joint computes the angle for j. It reports false when any of the three landmarks is
// absent or the vertex coincides with one of the end points.
func Joint(set *types.KeypointSet, j types.Joint) (float64, bool) {
	t := Joints[j]
	a, ok := set.Point(t.Proximal)
	if !ok {
		return 0, false
	}
	b, ok := set.Point(t.Vertex)
	if !ok {
		return 0, false
	}
	c, ok := set.Point(t.Distal)
	if !ok {
		return 0, false
	}
	if a == b || c == b {
		return 0, false
	}
	return Between(a, b, c), true
}

// Compute derives all joint angles for a detection, leaving unresolvable joints absent.
func Compute(set *types.KeypointSet) types.JointAngles {
	var angles types.JointAngles
	for _, j := range types.AllJoints {
		if deg, ok := Joint(set, j); ok {
			angles.Set(j, deg)
		}
	}
	return angles
}
