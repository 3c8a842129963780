package directory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/routing"
)

const sampleTopology = `{
  "member_id": "L",
  "communities": ["C2", "C1"],
  "gateways": [
    {"member_id": "M1", "source_community": "C1", "destination_community": "C2"},
    {"member_id": "M1", "source_community": "C1", "destination_community": "C2"},
    {"member_id": "M5", "source_community": "C2", "destination_community": "C3"}
  ],
  "endpoints": [
    {"id": "e1", "member_id": "M1", "community_id": "C1", "protocol_id": "http", "address": "http://m1:8470"},
    {"id": "e2", "member_id": "M1", "community_id": "default", "protocol_id": "http", "address": "http://m1:8470"},
    {"id": "e3", "member_id": "M5", "community_id": "C2", "protocol_id": "amqp", "address": "M5"}
  ]
}`

func writeTopology(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	d, err := LoadFile(writeTopology(t, sampleTopology))
	require.NoError(t, err)

	assert.Equal(t, "L", d.LocalMemberID())
	assert.Equal(t, []string{"C1", "C2"}, d.CommunityIDs())
	assert.True(t, d.IsMember("C2"))
	assert.False(t, d.IsMember("C3"))
	assert.Len(t, d.Gateways(), 2, "duplicate gateway records collapse")
	assert.Equal(t, []routing.Gateway{{MemberID: "M5", SourceCommunity: "C2", DestinationCommunity: "C3"}}, d.SourceGateways("C2"))
	assert.Empty(t, d.SourceGateways("C9"))
}

func TestLoadFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadFile(writeTopology(t, `{"member_id":`))
		assert.True(t, errors.IsType(err, errors.ErrTypeFormat))
	})

	t.Run("invalid document", func(t *testing.T) {
		_, err := LoadFile(writeTopology(t, `{"member_id": "L", "communities": []}`))
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	})

	t.Run("gateway missing member", func(t *testing.T) {
		_, err := LoadFile(writeTopology(t, `{"member_id": "L", "communities": ["C1"],
			"gateways": [{"source_community": "C1", "destination_community": "C2"}]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "member_id")
	})

	t.Run("duplicate endpoint id", func(t *testing.T) {
		_, err := New(Topology{
			MemberID:    "L",
			Communities: []string{"C1"},
			Endpoints: []routing.Endpoint{
				{ID: "e1", MemberID: "M1", CommunityID: "C1", ProtocolID: "http", Address: "a"},
				{ID: "e1", MemberID: "M2", CommunityID: "C1", ProtocolID: "http", Address: "b"},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate endpoint id e1")
	})
}

func TestEndpointsForMember(t *testing.T) {
	d, err := LoadFile(writeTopology(t, sampleTopology))
	require.NoError(t, err)

	ids := func(endpoints []routing.Endpoint) []string {
		out := make([]string, len(endpoints))
		for i, e := range endpoints {
			out[i] = e.ID
		}
		return out
	}

	assert.Equal(t, []string{"e1", "e2"}, ids(d.EndpointsForMember("M1", "", nil)))
	assert.Equal(t, []string{"e1"}, ids(d.EndpointsForMember("M1", "", []string{"default"})))
	assert.Equal(t, []string{"e2"}, ids(d.EndpointsForMember("M1", "default", nil)))
	assert.Empty(t, d.EndpointsForMember("M1", "C2", nil))
	assert.Empty(t, d.EndpointsForMember("M9", "", nil))
}

func TestReplace(t *testing.T) {
	d, err := LoadFile(writeTopology(t, sampleTopology))
	require.NoError(t, err)

	err = d.Replace(Topology{MemberID: "L"})
	require.Error(t, err)
	assert.Equal(t, []string{"C1", "C2"}, d.CommunityIDs(), "failed replace keeps the old topology")

	require.NoError(t, d.Replace(Topology{MemberID: "L", Communities: []string{"C7"}}))
	assert.Equal(t, []string{"C7"}, d.CommunityIDs())
	assert.Empty(t, d.Gateways())
	assert.Empty(t, d.SourceGateways("C1"))
}

func TestDirectory_SatisfiesRoutingInterfaces(t *testing.T) {
	d, err := New(Topology{MemberID: "L", Communities: []string{"C1"}})
	require.NoError(t, err)

	var _ routing.Directory = d
	var _ routing.EndpointDirectory = d
}
