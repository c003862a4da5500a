package flag

import (
	"bytes"
	"testing"

	"github.com/formiko/flagsh/internal/logging"
	"github.com/formiko/flagsh/internal/vec"
	"github.com/stretchr/testify/assert"
)

// captureLog перенаправляет логгер пакета в буфер до конца теста
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger
	logger = logging.NewWriterLogger("flag", &buf, logging.TRACE)
	t.Cleanup(func() { logger = prev })
	return &buf
}

func TestFacingFrom(t *testing.T) {
	anchor := vec.Vec3{X: 10, Y: 64, Z: -3}

	tests := []struct {
		name   string
		behind vec.Vec3
		want   int
	}{
		{"стена по +X", vec.Vec3{X: 11, Y: 64, Z: -3}, 0},
		{"стена по -X", vec.Vec3{X: 9, Y: 64, Z: -3}, 180},
		{"стена по +Z", vec.Vec3{X: 10, Y: 64, Z: -2}, 90},
		{"стена по -Z", vec.Vec3{X: 10, Y: 64, Z: -4}, -90},
		{"X важнее Z", vec.Vec3{X: 11, Y: 64, Z: -10}, 0},
		{"Y не учитывается", vec.Vec3{X: 10, Y: 65, Z: -2}, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			assert.Equal(t, tt.want, FacingFrom(anchor, tt.behind))
			assert.Empty(t, buf.String(), "Для корректной пары предупреждений быть не должно")
		})
	}
}

func TestFacingFrom_Degenerate(t *testing.T) {
	buf := captureLog(t)
	anchor := vec.Vec3{X: 1, Y: 2, Z: 3}

	yaw := FacingFrom(anchor, vec.Vec3{X: 1, Y: 7, Z: 3})

	assert.Equal(t, 0, yaw, "Вырожденная пара дает yaw 0")
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "same x/z location")
}
