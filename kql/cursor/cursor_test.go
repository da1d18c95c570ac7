package cursor

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestreldb/kestrel/kql/ast"
	"github.com/kestreldb/kestrel/kql/parser"
)

func mustParse(t *testing.T, text string) *ast.Query {
	t.Helper()
	q, err := parser.New(parser.DefaultDialect()).ParseString(text)
	require.NoError(t, err)
	return q
}

func TestRoundTrip(t *testing.T) {
	q := mustParse(t, "FIND Task WHERE status = 'open'")
	token := Encode(Fingerprint(q), 42)

	fingerprint, position, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(q), fingerprint)
	assert.Equal(t, 42, position)

	position, err = Verify(token, q)
	require.NoError(t, err)
	assert.Equal(t, 42, position)
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	cases := map[string]string{
		"not base64":        "not-a-token!",
		"base64 of garbage": base64.URLEncoding.EncodeToString([]byte("garbage")),
		"missing fields":    base64.URLEncoding.EncodeToString([]byte(`{}`)),
		"negative position": base64.URLEncoding.EncodeToString([]byte(`{"f":"abc","p":-1}`)),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(token)
			var pagErr *PaginationError
			require.ErrorAs(t, err, &pagErr)
			assert.Equal(t, CodeInvalid, pagErr.Code)
		})
	}
}

func TestVerifyRejectsDifferentShape(t *testing.T) {
	open := mustParse(t, "FIND Task WHERE status = 'open'")
	closed := mustParse(t, "FIND Task WHERE status = 'closed'")

	token := Encode(Fingerprint(open), 10)
	_, err := Verify(token, closed)
	var pagErr *PaginationError
	require.ErrorAs(t, err, &pagErr)
	assert.Equal(t, CodeMismatch, pagErr.Code)
}

func TestFingerprintIgnoresPagination(t *testing.T) {
	base := mustParse(t, "FIND Task WHERE status = 'open'")
	paged := mustParse(t, "FIND Task WHERE status = 'open' LIMIT 5")
	resumed := mustParse(t, "FIND Task WHERE status = 'open' LIMIT 5 CURSOR 'abc'")

	assert.Equal(t, Fingerprint(base), Fingerprint(paged))
	assert.Equal(t, Fingerprint(base), Fingerprint(resumed))

	other := mustParse(t, "FIND Task WHERE status = 'open' GROUP BY owner")
	assert.NotEqual(t, Fingerprint(base), Fingerprint(other))
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a := mustParse(t, "FIND Task WHERE a = 1 AND b = 2 FILTER c CONTAINS 'x'")
	b := mustParse(t, "FIND Task WHERE a = 1 AND b = 2 FILTER c CONTAINS 'x'")
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}
