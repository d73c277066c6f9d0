package token

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueThenVerify(t *testing.T) {
	codec := NewCodec()
	subject := uuid.New()

	issued, err := codec.Issue(subject)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Combined, subject.String()+"."))
	assert.NotContains(t, issued.Combined, issued.Hash)

	parsed, ok := Parse(issued.Combined)
	require.True(t, ok)
	assert.Equal(t, subject, parsed.SubjectID)

	idx, ok := Verify(parsed, []Candidate{{Hash: issued.Hash, Salt: issued.Salt}})
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestVerifyScansAllCandidates(t *testing.T) {
	codec := NewCodec()
	subject := uuid.New()

	older, err := codec.Issue(subject)
	require.NoError(t, err)
	newer, err := codec.Issue(subject)
	require.NoError(t, err)
	assert.NotEqual(t, older.Salt, newer.Salt)

	parsed, ok := Parse(newer.Combined)
	require.True(t, ok)

	idx, ok := Verify(parsed, []Candidate{
		{Hash: older.Hash, Salt: older.Salt},
		{Hash: newer.Hash, Salt: newer.Salt},
	})
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = Verify(parsed, []Candidate{{Hash: older.Hash, Salt: older.Salt}})
	assert.False(t, ok)
}

func TestParseRejectsMalformed(t *testing.T) {
	issued, err := NewCodec().Issue(uuid.New())
	require.NoError(t, err)
	id, secret, _ := strings.Cut(issued.Combined, ".")

	cases := map[string]string{
		"empty":             "",
		"no separator":      id + secret,
		"missing secret":    id + ".",
		"missing id":        "." + secret,
		"bad uuid":          "not-a-uuid." + secret,
		"braced uuid":       "{" + id + "}." + secret,
		"nil uuid":          uuid.Nil.String() + "." + secret,
		"extra separator":   id + "." + secret + ".x",
		"std base64 secret": id + "." + strings.Repeat("+", 43),
		"short secret":      id + ".YWJj",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Parse(value)
			assert.False(t, ok)
		})
	}
}

func TestIssueFailsWithoutEntropy(t *testing.T) {
	codec := NewCodecWithReader(bytes.NewReader([]byte{1, 2, 3}))
	_, err := codec.Issue(uuid.New())
	assert.ErrorIs(t, err, ErrEntropy)
}

func TestRejectedErrorMessage(t *testing.T) {
	err := Reject(OutcomeConsumed)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, OutcomeConsumed, rejected.Outcome)
	assert.EqualError(t, err, "token_consumed")
}

func TestLink(t *testing.T) {
	link := Link("https://tandem.test/", "invites/accept", "abc.def")
	assert.Equal(t, "https://tandem.test/invites/accept?token=abc.def", link)
}
