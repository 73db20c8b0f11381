package waiver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

const sample = `
# debug header is populated later
waive UnconnectedPin at U1.14 because "reserved"
waive SinglePinNet on net "TP_VREF"
waive NoDecouplingCapacitor at "IC3"
waive UnlabeledNet
`

func TestParse(t *testing.T) {
	f, err := Parse("sample", strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, f.Waivers, 4)

	w := f.Waivers[0]
	assert.Equal(t, "UnconnectedPin", w.Kind)
	require.NotNil(t, w.At)
	assert.Equal(t, "U1", w.At.Ref)
	assert.Equal(t, "14", w.At.Pin)
	require.NotNil(t, w.Reason)
	assert.Equal(t, "reserved", *w.Reason)
	assert.Equal(t, 3, w.Pos.Line)

	require.NotNil(t, f.Waivers[1].Net)
	assert.Equal(t, "TP_VREF", *f.Waivers[1].Net)
	assert.Equal(t, "IC3", f.Waivers[2].At.Ref)
	assert.Equal(t, "", f.Waivers[2].At.Pin)
	assert.Nil(t, f.Waivers[3].At)

	assert.Equal(t, "waive UnconnectedPin at U1.14", w.String())
	assert.Equal(t, `waive SinglePinNet on net "TP_VREF"`, f.Waivers[1].String())
}

func TestParseErrors(t *testing.T) {
	for name, input := range map[string]string{
		"unknown kind": "waive NoSuchThing\n",
		"missing kind": "waive\n",
		"bad keyword":  "ignore UnconnectedPin\n",
		"unterminated": `waive SinglePinNet on net "TP` + "\n",
		"missing net":  "waive SinglePinNet on\n",
		"dangling pin": "waive UnconnectedPin at U1.\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("bad", strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.waivers")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	f, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Waivers, 4)
	assert.Equal(t, path, f.Waivers[0].Pos.Filename)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func board() *schematic.Schematic {
	return &schematic.Schematic{
		Components: []schematic.Component{
			{ID: "u1", Reference: "U1", Pins: []schematic.Pin{
				{ID: "14", Position: geom.Pt(0, 0), Role: schematic.RoleInput},
				{ID: "15", Position: geom.Pt(0, 100), Role: schematic.RoleInput},
			}},
			{ID: "tp", Reference: "TP1", Position: geom.Pt(500, 0), Pins: []schematic.Pin{
				{ID: "1", Position: geom.Pt(500, 0)},
			}},
		},
		Wires: []schematic.Wire{{
			ID:      "w1",
			Points:  []geom.Point{geom.Pt(500, 0), geom.Pt(600, 0)},
			NetName: "TP_VREF",
		}},
	}
}

func TestApply(t *testing.T) {
	sch := board()
	r := erc.Check(sch)
	require.Equal(t, 2, r.Count(erc.KindUnconnectedPin))
	require.Equal(t, 1, r.Count(erc.KindSinglePinNet))
	require.False(t, r.Passed)

	f, err := Parse("sample", strings.NewReader(sample))
	require.NoError(t, err)
	removed, unused := f.Apply(r, sch)

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, r.Count(erc.KindUnconnectedPin))
	assert.Equal(t, "15", r.Errors[0].Location.PinID)
	assert.Zero(t, r.Count(erc.KindSinglePinNet))
	assert.False(t, r.Passed)

	require.Len(t, unused, 2)
	assert.Equal(t, "NoDecouplingCapacitor", unused[0].Kind)
	assert.Equal(t, "UnlabeledNet", unused[1].Kind)

	more, err := Parse("more", strings.NewReader("waive UnconnectedPin at U1\n"))
	require.NoError(t, err)
	f.Merge(more)
	f.Apply(r, sch)
	assert.True(t, r.Passed)
}

func TestIncompleteIsNotWaivable(t *testing.T) {
	r := &erc.Report{Errors: []erc.Diagnostic{{Kind: erc.KindCheckIncomplete}, {Kind: erc.KindInternalError}}}
	f, err := Parse("all", strings.NewReader("waive CheckIncomplete\nwaive InternalError\n"))
	require.NoError(t, err)

	removed, unused := f.Apply(r, board())
	assert.Zero(t, removed)
	assert.Len(t, unused, 2)
	assert.Len(t, r.Errors, 2)
}
