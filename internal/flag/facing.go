package flag

import (
	"github.com/formiko/flagsh/internal/logging"
	"github.com/formiko/flagsh/internal/vec"
)

// Допустимые значения yaw флага в градусах
const (
	YawEast  = 0   // стена со стороны +X
	YawSouth = 90  // стена со стороны +Z
	YawWest  = 180 // стена со стороны -X
	YawNorth = -90 // стена со стороны -Z
)

var logger = logging.GetFlagLogger()

// FacingFrom вычисляет yaw флага по блоку-якорю и блоку стены за ним.
// Если блоки не различаются ни по X, ни по Z, пишет предупреждение и возвращает 0.
func FacingFrom(anchor, behind vec.Vec3) int {
	yaw, ok := facing(anchor, behind)
	if !ok {
		logger.Warn("FacingFrom: behind and anchor blocks are at the same x/z location (%s, %s)", anchor, behind)
	}
	return yaw
}

func facing(anchor, behind vec.Vec3) (int, bool) {
	switch {
	case behind.X > anchor.X:
		return YawEast, true
	case behind.X < anchor.X:
		return YawWest, true
	case behind.Z > anchor.Z:
		return YawSouth, true
	case behind.Z < anchor.Z:
		return YawNorth, true
	default:
		return YawEast, false
	}
}

// validYaw сообщает, является ли yaw одним из четырех направлений
func validYaw(yaw int) bool {
	switch yaw {
	case YawEast, YawSouth, YawWest, YawNorth:
		return true
	}
	return false
}
