package gml_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcn2sql/internal/gml"
)

func TestLocal(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"{http://www.opengis.net/gml/3.2}featureMember", "featureMember"},
		{"{urn:rcn}RCN_Adres", "RCN_Adres"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gml.Local(tt.tag))
	}
}

func TestParseBuildsSubtree(t *testing.T) {
	el, err := gml.ParseString(`
	<rcn:RCN_Adres xmlns:rcn="urn:rcn" xmlns:gml="http://www.opengis.net/gml/3.2"
	               gml:id="AD_1">
		<rcn:miejscowosc>Warszawa</rcn:miejscowosc>
		<rcn:ulica> Marszałkowska </rcn:ulica>
	</rcn:RCN_Adres>`)
	require.NoError(t, err)

	assert.Equal(t, "RCN_Adres", el.Local())
	id, ok := el.Attr("{http://www.opengis.net/gml/3.2}id")
	assert.True(t, ok)
	assert.Equal(t, "AD_1", id)

	require.Len(t, el.Children, 2)
	assert.Equal(t, "miejscowosc", el.Children[0].Local())
	assert.Equal(t, "Warszawa", el.Children[0].Text)
	assert.Equal(t, " Marszałkowska ", el.Children[1].Text)
}

func TestElementString(t *testing.T) {
	el, err := gml.ParseString(`<rcn:RCN_Adres xmlns:rcn="urn:rcn"><rcn:ulica>A&amp;B</rcn:ulica></rcn:RCN_Adres>`)
	require.NoError(t, err)

	out := el.String()
	assert.Contains(t, out, "RCN_Adres")
	assert.Contains(t, out, `xmlns:ns0="urn:rcn"`)
	assert.Contains(t, out, "A&amp;B")

	// Serialized form parses back to the same shape.
	again, err := gml.ParseString(out)
	require.NoError(t, err)
	assert.Equal(t, el.Tag, again.Tag)
	require.Len(t, again.Children, 1)
	assert.Equal(t, "A&B", again.Children[0].Text)
}

const sampleDoc = `
<gml:FeatureCollection xmlns:gml="http://www.opengis.net/gml/3.2" xmlns:rcn="urn:rcn" gml:id="fc_1">
	<gml:featureMember>
		<rcn:RCN_Adres gml:id="AD_1"><rcn:miejscowosc>Warszawa</rcn:miejscowosc></rcn:RCN_Adres>
	</gml:featureMember>
	<gml:featureMember></gml:featureMember>
	<gml:featureMember>
		<rcn:RCN_Dokument gml:id="DOK_1"/>
	</gml:featureMember>
</gml:FeatureCollection>`

func TestCountFeatures(t *testing.T) {
	n, err := gml.CountFeatures(strings.NewReader(sampleDoc))
	require.NoError(t, err)
	// Empty wrappers still count; counting tracks wrapper elements.
	assert.Equal(t, 3, n)
}

func TestFeatureReaderYieldsInDocumentOrder(t *testing.T) {
	fr := gml.NewFeatureReader(strings.NewReader(sampleDoc))

	first, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "RCN_Adres", first.Local())

	// The empty wrapper is skipped silently.
	second, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "RCN_Dokument", second.Local())

	_, err = fr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFeatureReaderEmptyDocument(t *testing.T) {
	fr := gml.NewFeatureReader(strings.NewReader(
		`<gml:FeatureCollection xmlns:gml="http://www.opengis.net/gml/3.2"/>`))
	_, err := fr.Next()
	assert.Equal(t, io.EOF, err)
}
