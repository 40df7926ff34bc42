package bundle

import (
	"bytes"
	"encoding/base64"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allBytes() []byte {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func requireSameBundle(t *testing.T, want, got Bundle) {
	t.Helper()
	require.Len(t, got.Manifests, len(want.Manifests))
	for i := range want.Manifests {
		assert.True(t, bytes.Equal(want.Manifests[i].Data, got.Manifests[i].Data), "manifest %d bytes", i)
		assert.Equal(t, want.Manifests[i].DepotID, got.Manifests[i].DepotID, "manifest %d depot", i)
		assert.Equal(t, want.Manifests[i].ManifestID, got.Manifests[i].ManifestID, "manifest %d manifest", i)
	}
	if want.Script == nil {
		assert.Nil(t, got.Script)
		return
	}
	require.NotNil(t, got.Script)
	assert.True(t, bytes.Equal(want.Script.Data, got.Script.Data), "script bytes")
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	payload := func() []byte {
		b := make([]byte, rng.Intn(600))
		rng.Read(b)
		return b
	}
	for iter := 0; iter < 200; iter++ {
		var b Bundle
		for i := rng.Intn(11); i > 0; i-- {
			m := Manifest{Data: payload()}
			if rng.Intn(2) == 0 {
				m.DepotID = "3716601"
				m.ManifestID = "3930318588611247096"
			}
			b.Manifests = append(b.Manifests, m)
		}
		if rng.Intn(2) == 0 || len(b.Manifests) == 0 {
			b.Script = &Script{Data: payload()}
		}

		enc, err := Encode(b)
		require.NoError(t, err)
		got, err := Decode(enc)
		require.NoError(t, err)
		requireSameBundle(t, b, got)
	}
}

func TestRoundTripEdgePayloads(t *testing.T) {
	b := Bundle{
		Manifests: []Manifest{{Data: nil}, {Data: allBytes()}, {Data: []byte("===")}},
		Script:    &Script{Data: []byte{}},
	}
	enc, err := Encode(b)
	require.NoError(t, err)
	got, err := Decode(enc)
	require.NoError(t, err)
	requireSameBundle(t, b, got)
}

func TestEncodeIsDeterministic(t *testing.T) {
	b := Bundle{Manifests: []Manifest{{DepotID: "1", ManifestID: "2", Data: []byte("a")}}, Script: &Script{Data: []byte("b")}}
	first, err := Encode(b)
	require.NoError(t, err)
	second, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncodeLayout(t *testing.T) {
	b := Bundle{
		Manifests: []Manifest{
			{DepotID: "10", ManifestID: "20", Data: []byte("one")},
			{Data: []byte("two")},
		},
		Script: &Script{Data: []byte("lua")},
	}
	enc, err := Encode(b)
	require.NoError(t, err)
	want := ManifestTag + " [10_20]\n" + base64.StdEncoding.EncodeToString([]byte("one")) +
		"\n\n" + ManifestTag + "\n" + base64.StdEncoding.EncodeToString([]byte("two")) +
		"\n\n" + ScriptTag + "\n" + base64.StdEncoding.EncodeToString([]byte("lua"))
	assert.Equal(t, want, enc)
}

func TestEncodeManifestOnlyHasNoTrailingSeparator(t *testing.T) {
	enc, err := Encode(Bundle{Manifests: []Manifest{{Data: []byte("x")}, {Data: []byte("y")}}})
	require.NoError(t, err)
	assert.False(t, strings.HasSuffix(enc, "\n"))
	assert.NotContains(t, enc, ScriptTag)
}

func TestMetadataPreserved(t *testing.T) {
	enc, err := Encode(Bundle{Manifests: []Manifest{{DepotID: "3716601", ManifestID: "3930318588611247096", Data: []byte{1, 2, 3}}}})
	require.NoError(t, err)
	got, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, got.Manifests, 1)
	assert.Equal(t, "3716601", got.Manifests[0].DepotID)
	assert.Equal(t, "3930318588611247096", got.Manifests[0].ManifestID)
}

func TestManifestIDMayContainUnderscore(t *testing.T) {
	enc, err := Encode(Bundle{Manifests: []Manifest{{DepotID: "7", ManifestID: "some_file", Data: []byte("x")}}})
	require.NoError(t, err)
	got, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, "7", got.Manifests[0].DepotID)
	assert.Equal(t, "some_file", got.Manifests[0].ManifestID)
}

func TestDecodeLegacyUntagged(t *testing.T) {
	in := ManifestTag + "\n" + base64.StdEncoding.EncodeToString([]byte("legacy"))
	got, err := Decode(in)
	require.NoError(t, err)
	require.Len(t, got.Manifests, 1)
	assert.Empty(t, got.Manifests[0].DepotID)
	assert.Empty(t, got.Manifests[0].ManifestID)
	assert.Equal(t, []byte("legacy"), got.Manifests[0].Data)
	assert.Nil(t, got.Script)
}

func TestDecodeLegacyPayloadOnTagLine(t *testing.T) {
	in := ManifestTag + " " + base64.StdEncoding.EncodeToString([]byte("same line"))
	got, err := Decode(in)
	require.NoError(t, err)
	require.Len(t, got.Manifests, 1)
	assert.Equal(t, []byte("same line"), got.Manifests[0].Data)
}

func TestMultiplicity(t *testing.T) {
	b := Bundle{
		Manifests: []Manifest{{Data: []byte("first")}, {Data: []byte("second")}, {Data: []byte("third")}},
		Script:    &Script{Data: []byte("print('hi')")},
	}
	enc, err := Encode(b)
	require.NoError(t, err)
	got, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, got.Manifests, 3)
	assert.Equal(t, []byte("first"), got.Manifests[0].Data)
	assert.Equal(t, []byte("second"), got.Manifests[1].Data)
	assert.Equal(t, []byte("third"), got.Manifests[2].Data)
	require.NotNil(t, got.Script)
	assert.Equal(t, []byte("print('hi')"), got.Script.Data)
}

func TestDecodeFirstScriptWins(t *testing.T) {
	in := ScriptTag + "\n" + base64.StdEncoding.EncodeToString([]byte("first")) +
		"\n\n" + ScriptTag + "\n" + base64.StdEncoding.EncodeToString([]byte("second"))
	got, err := Decode(in)
	require.NoError(t, err)
	require.NotNil(t, got.Script)
	assert.Equal(t, []byte("first"), got.Script.Data)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode("not a bundle at all")
	assert.ErrorIs(t, err, ErrMalformedBundle)

	_, err = Decode("")
	assert.ErrorIs(t, err, ErrMalformedBundle)

	// a tag in the middle of a line is not a section boundary
	_, err = Decode("prefix " + ManifestTag + "\nAAAA")
	assert.ErrorIs(t, err, ErrMalformedBundle)
}

func TestDecodeBadBase64(t *testing.T) {
	in := ManifestTag + "\n" + base64.StdEncoding.EncodeToString([]byte("ok")) +
		"\n\n" + ManifestTag + "\n!!!not base64!!!"
	got, err := Decode(in)
	var se *SectionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "manifest", se.Kind)
	assert.Equal(t, 2, se.Position)
	assert.True(t, got.Empty(), "no partial result on failure")
}

func TestEncodeEmpty(t *testing.T) {
	_, err := Encode(Bundle{})
	assert.ErrorIs(t, err, ErrEmptyBundle)
}

func TestEncodeInvalidMetadata(t *testing.T) {
	cases := []Manifest{
		{DepotID: "1", Data: []byte("x")},
		{ManifestID: "2", Data: []byte("x")},
		{DepotID: "1_1", ManifestID: "2", Data: []byte("x")},
		{DepotID: "1", ManifestID: "2]", Data: []byte("x")},
		{DepotID: "1", ManifestID: "2\n3", Data: []byte("x")},
	}
	for _, m := range cases {
		_, err := Encode(Bundle{Manifests: []Manifest{m}})
		assert.ErrorIs(t, err, ErrInvalidMetadata, "%+v", m)
	}
}

func TestWhitespaceTolerance(t *testing.T) {
	data := make([]byte, 1000)
	rand.New(rand.NewSource(7)).Read(data)
	flat := base64.StdEncoding.EncodeToString(data)

	var wrapped strings.Builder
	for i := 0; i < len(flat); i += 76 {
		end := min(i+76, len(flat))
		wrapped.WriteString(flat[i:end])
		wrapped.WriteString("\n")
	}

	a, err := Decode(ManifestTag + "\n" + flat)
	require.NoError(t, err)
	b, err := Decode(ManifestTag + "\n" + wrapped.String())
	require.NoError(t, err)
	assert.Equal(t, a.Manifests[0].Data, b.Manifests[0].Data)
	assert.Equal(t, data, b.Manifests[0].Data)

	crlf := strings.ReplaceAll(ManifestTag+"\n"+wrapped.String(), "\n", "\r\n")
	c, err := Decode(crlf)
	require.NoError(t, err)
	assert.Equal(t, data, c.Manifests[0].Data)
}

func TestSize(t *testing.T) {
	b := Bundle{Manifests: []Manifest{{Data: make([]byte, 10)}, {Data: make([]byte, 5)}}, Script: &Script{Data: make([]byte, 3)}}
	assert.Equal(t, int64(18), b.Size())
}
