package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v string) *string { return &v }

func TestSanitizeTrimsAndNullsEmpty(t *testing.T) {
	out := Sanitize(Submission{
		Nickname:     ptr("  Ace "),
		ContactEmail: ptr(" Bull@Example.com "),
		Country:      ptr("GR"),
		City:         ptr("Athens"),
		Region:       ptr("   "),
		Bio:          nil,
	})

	require.NotNil(t, out.Nickname)
	assert.Equal(t, "Ace", *out.Nickname)
	assert.Equal(t, "bull@example.com", *out.ContactEmail)
	assert.Nil(t, out.Region)
	assert.Nil(t, out.Bio)
}

func TestSanitizeCapsRunes(t *testing.T) {
	long := strings.Repeat("é", MaxNickname+10)
	out := Sanitize(Submission{Nickname: &long})
	require.NotNil(t, out.Nickname)
	assert.Equal(t, MaxNickname, len([]rune(*out.Nickname)))
}

func TestValidate(t *testing.T) {
	valid := Sanitize(Submission{
		Nickname:     ptr("Ace"),
		ContactEmail: ptr("bull@example.com"),
		Country:      ptr("GR"),
		City:         ptr("Athens"),
	})
	assert.NoError(t, Validate(valid))

	missingCity := valid
	missingCity.City = nil
	err := Validate(missingCity)
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "city", fieldErr.Field)
	assert.ErrorIs(t, err, ErrInvalidProfile)

	badEmail := valid
	badEmail.ContactEmail = ptr("not an email")
	require.ErrorAs(t, Validate(badEmail), &fieldErr)
	assert.Equal(t, "contactEmail", fieldErr.Field)

	named := valid
	named.ContactEmail = ptr("Ace <bull@example.com>")
	assert.Error(t, Validate(named))
}

func TestEmpty(t *testing.T) {
	assert.True(t, Submission{}.Empty())
	assert.True(t, Sanitize(Submission{Bio: ptr("  ")}).Empty())
	assert.False(t, Submission{Region: ptr("Attica")}.Empty())
}
