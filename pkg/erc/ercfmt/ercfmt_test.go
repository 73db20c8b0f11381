package ercfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
)

func report() *erc.Report {
	return &erc.Report{
		Errors: []erc.Diagnostic{{
			Kind:     erc.KindUnconnectedPin,
			Message:  "Pin 1 of component R1 is not connected",
			Severity: erc.SeverityHigh,
			Location: &erc.Location{X: 10, Y: 20.5, ComponentID: "r1", PinID: "1"},
		}},
		Warnings: []erc.Diagnostic{{
			Kind:     erc.KindMissingGroundNet,
			Message:  "No ground net detected in the schematic",
			Severity: erc.SeverityMedium,
		}},
		Timestamp: 1700000000,
		Statistics: erc.Statistics{
			TotalComponents: 3, TotalWires: 2, TotalPins: 4,
			ConnectedPins: 3, UnconnectedPins: 1, TotalNets: 2, PowerNets: 1,
		},
		Status: erc.StatusComplete,
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, report(), TextOptions{Title: "board.kicad_sch", Stats: true}))

	want := `ERC report: board.kicad_sch

Errors (1):
  High     UnconnectedPin: Pin 1 of component R1 is not connected (at 10, 20.5)

Warnings (1):
  Medium   MissingGroundNet: No ground net detected in the schematic

Statistics:
  Components: 3
  Wires: 2
  Pins: 4 (3 connected, 1 unconnected)
  Nets: 2 (1 power, 0 ground)

FAILED (1 error, 1 warning)
`
	assert.Equal(t, want, buf.String())
}

func TestTextQuietPassed(t *testing.T) {
	r := report()
	r.Errors = nil
	r.Passed = true

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, r, TextOptions{Quiet: true}))
	assert.Equal(t, "\nPASSED (0 errors, 1 warning)\n", buf.String())
}

func TestTextIncomplete(t *testing.T) {
	r := report()
	r.Status = erc.StatusIncomplete

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, r, TextOptions{}))
	assert.True(t, strings.HasPrefix(buf.String(), "Status: incomplete\n"))
}

func TestTextColor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, report(), TextOptions{Color: true}))
	assert.Contains(t, buf.String(), "\x1b[")

	buf.Reset()
	require.NoError(t, Text(&buf, report(), TextOptions{}))
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, report(), FormatJSON, TextOptions{}))

	var doc struct {
		Errors []struct {
			Kind string `json:"kind"`
		} `json:"errors"`
		Passed bool `json:"passed"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "UnconnectedPin", doc.Errors[0].Kind)
	assert.False(t, doc.Passed)
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestRules(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Rules(&buf, erc.Rules(), false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(erc.Rules()))
	assert.True(t, strings.HasPrefix(lines[0], "malformed_wires "))
	assert.Contains(t, lines[2], "Critical")
	assert.Contains(t, lines[2], "error")
}
