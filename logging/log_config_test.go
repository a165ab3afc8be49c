package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePattern(t *testing.T) {
	cases := []struct {
		pattern string
		valid   bool
	}{
		{"engine.odom", true},
		{"engine.odom.*", true},
		{"*.odom", true},
		{"*", true},
		{"engine..odom", false},
		{"engine.odom.", false},
		{".engine.odom", false},
		{"engine.odom.**", false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.valid, validatePattern(tc.pattern), "pattern %q", tc.pattern)
	}
}

func TestBuildRegexFromPattern(t *testing.T) {
	re := buildRegexFromPattern("engine.*")
	assert.Equal(t, `^engine\..*$`, re)
}
