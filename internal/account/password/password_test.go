package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("Str0ngP@ss1")
	require.NoError(t, err)
	assert.True(t, Verify("Str0ngP@ss1", encoded))
	assert.False(t, Verify("Str0ngP@ss2", encoded))
	assert.False(t, Verify("Str0ngP@ss1", "$bcrypt$nope"))
}

func TestCheckStrength(t *testing.T) {
	cases := map[string]bool{
		"Str0ngP@ss1":  true,
		"lowerUPPER1":  true,
		"abc!def#9":    true,
		"short1A":      false,
		"alllowercase": false,
		"lowerUPPER":   false,
		"12345678":     false,
	}
	for pw, ok := range cases {
		err := CheckStrength(pw)
		if ok {
			assert.NoError(t, err, pw)
		} else {
			assert.ErrorIs(t, err, ErrWeak, pw)
		}
	}
}
