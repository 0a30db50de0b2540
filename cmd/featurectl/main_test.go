package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/codec"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

const places string = `{"type":"FeatureCollection","features":[
	{"type":"Feature","id":"p1","geometry":{"type":"Point","coordinates":[17.3,62.39]},"properties":{"name":"Sundsvall","population":58000}},
	{"type":"Feature","id":"p2","geometry":{"type":"Point","coordinates":[18.07,59.33]},"properties":{"name":"Stockholm","population":975000}}
]}`

func TestTypesListsEveryStore(t *testing.T) {
	is, config := testSetup(t)

	out, err := run(config, "types")
	is.NoErr(err)

	is.True(strings.Contains(out, "STORE"))
	is.True(strings.Contains(out, "places"))

	lines := strings.Split(strings.TrimSpace(out), "\n")
	is.Equal(len(lines), 2) // header and the single type of the source store
	is.True(strings.HasPrefix(lines[1], "source"))
	is.True(strings.HasSuffix(lines[1], "2"))
}

func TestDumpWritesGeoJSON(t *testing.T) {
	is, config := testSetup(t)

	out, err := run(config, "dump", "places")
	is.NoErr(err)

	features, schema, err := codec.DecodeFeatures([]byte(out))
	is.NoErr(err)
	is.Equal(len(features), 2)
	is.Equal(schema.Name, "places")
}

func TestDumpWithFilterSortAndLimit(t *testing.T) {
	is, config := testSetup(t)

	out, err := run(config, "dump", "places", "--where", "name=Stockholm")
	is.NoErr(err)

	features, _, err := codec.DecodeFeatures([]byte(out))
	is.NoErr(err)
	is.Equal(len(features), 1)
	is.Equal(features[0].ID, "p2")

	out, err = run(config, "dump", "places", "--sortby", "-population", "--offset", "1", "-n", "1")
	is.NoErr(err)

	features, _, err = codec.DecodeFeatures([]byte(out))
	is.NoErr(err)
	is.Equal(len(features), 1)
	is.Equal(features[0].ID, "p1")
}

func TestDumpRejectsUnknownTypesAndAttributes(t *testing.T) {
	is, config := testSetup(t)

	_, err := run(config, "dump", "roads")
	is.True(err != nil) // unknown types should fail

	_, err = run(config, "dump", "places", "--where", "height=12")
	is.True(err != nil) // unknown attributes should fail

	_, err = run(config, "dump", "places", "--where", "name")
	is.True(err != nil) // a where clause needs a value
}

func TestCopyCreatesTheTypeInTheTarget(t *testing.T) {
	is, config := testSetup(t)

	out, err := run(config, "copy", "places", "archive")
	is.NoErr(err)
	is.True(strings.Contains(out, "copied 2 features"))

	out, err = run(config, "types", "archive")
	is.NoErr(err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	is.Equal(len(lines), 2)
	is.True(strings.HasPrefix(lines[1], "archive"))
	is.True(strings.HasSuffix(lines[1], "2"))
}

func TestCopyRefusesToCopyOntoItself(t *testing.T) {
	is, config := testSetup(t)

	_, err := run(config, "copy", "places", "source")
	is.True(err != nil)

	_, err = run(config, "copy", "places", "nowhere")
	is.True(err != nil) // unknown target stores should fail
}

func run(config string, args ...string) (string, error) {
	out := &bytes.Buffer{}

	root := newRootCommand(zerolog.Nop())
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", config}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testSetup(t *testing.T) (*is.I, string) {
	is := is.New(t)
	dir := t.TempDir()

	source := filepath.Join(dir, "source")
	is.NoErr(os.MkdirAll(source, 0755))
	is.NoErr(os.WriteFile(filepath.Join(source, "places.geojson"), []byte(places), 0644))

	config := filepath.Join(dir, "stores.yaml")
	is.NoErr(os.WriteFile(config, []byte(`stores:
  - name: source
    kind: folder
    path: `+source+`
  - name: archive
    kind: folder
    path: `+filepath.Join(dir, "archive")+`
`), 0644))

	return is, config
}
