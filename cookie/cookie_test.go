package cookie_test

import (
	"strings"
	"testing"

	"github.com/mruedinger/game-club/cookie"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Exp   int64  `json:"exp"`
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := cookie.NewCodec("test-secret")
	require.NoError(t, err)

	in := testPayload{Email: "jo@example.com", Role: "member", Exp: 1700000000000}
	value, err := codec.Encode(in)
	require.NoError(t, err)
	require.Contains(t, value, ".")

	var out testPayload
	require.True(t, codec.Decode(value, &out))
	require.Equal(t, in, out)
}

func TestCodec_MissingSecret(t *testing.T) {
	_, err := cookie.NewCodec("")
	require.ErrorIs(t, err, cookie.ErrMissingSecret)
}

func TestCodec_TamperDetection(t *testing.T) {
	codec, err := cookie.NewCodec("test-secret")
	require.NoError(t, err)

	value, err := codec.Encode(testPayload{Email: "jo@example.com", Role: "member"})
	require.NoError(t, err)

	t.Run("flipped payload byte", func(t *testing.T) {
		payload, sig, _ := strings.Cut(value, ".")
		flipped := flipChar(payload, 3) + "." + sig
		var out testPayload
		require.False(t, codec.Decode(flipped, &out))
	})

	t.Run("flipped signature byte", func(t *testing.T) {
		payload, sig, _ := strings.Cut(value, ".")
		flipped := payload + "." + flipChar(sig, 3)
		var out testPayload
		require.False(t, codec.Decode(flipped, &out))
	})

	t.Run("truncated signature", func(t *testing.T) {
		payload, sig, _ := strings.Cut(value, ".")
		var out testPayload
		require.False(t, codec.Decode(payload+"."+sig[:len(sig)-2], &out))
	})
}

func TestCodec_WrongSecret(t *testing.T) {
	first, err := cookie.NewCodec("secret-one")
	require.NoError(t, err)
	second, err := cookie.NewCodec("secret-two")
	require.NoError(t, err)

	value, err := first.Encode(testPayload{Email: "jo@example.com"})
	require.NoError(t, err)

	var out testPayload
	require.False(t, second.Decode(value, &out))
}

func TestCodec_MalformedInput(t *testing.T) {
	codec, err := cookie.NewCodec("test-secret")
	require.NoError(t, err)

	for name, value := range map[string]string{
		"empty":             "",
		"no dot":            "justonesegment",
		"empty payload":     ".c2lnbmF0dXJl",
		"empty signature":   "cGF5bG9hZA.",
		"invalid base64":    "@@@@.@@@@",
		"unsigned garbage":  "cGF5bG9hZA.c2lnbmF0dXJl",
		"dot only":          ".",
		"multiple segments": "a.b.c",
	} {
		t.Run(name, func(t *testing.T) {
			var out testPayload
			require.False(t, codec.Decode(value, &out))
		})
	}
}

func TestNew_Attributes(t *testing.T) {
	c := cookie.New("gc_session", "value", 600, true)
	require.Equal(t, "/", c.Path)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, 600, c.MaxAge)

	cleared := cookie.Cleared("gc_session", false)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
	require.False(t, cleared.Secure)
}

func flipChar(s string, i int) string {
	b := []byte(s)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
