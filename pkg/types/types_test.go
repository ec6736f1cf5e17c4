package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSpecYAMLRoundTrip(t *testing.T) {
	docs := map[string]string{
		"mon count": `
service_type: mon
placement:
  count: 3
`,
		"mds label": `
service_type: mds
service_id: fs1
placement:
  count: 2
  label: mds
`,
		"rgw realm zone": `
service_type: rgw
service_id: east
placement:
  host_pattern: "rgw-*"
rgw:
  realm: default
  zone: east-1
`,
		"explicit zero count": `
service_type: rgw
service_id: east
placement:
  count: 0
`,
		"nfs pool namespace": `
service_type: nfs
service_id: foo
unmanaged: true
nfs:
  pool: nfs-ganesha
  namespace: foo
`,
		"osd drive group": `
service_type: osd
service_id: default_drive_group
preview_only: true
placement:
  hosts:
    - h1
    - h2:10.0.0.0/24
osd:
  data_devices: /dev/sdb,/dev/sdc
  encrypted: true
`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			var first Spec
			require.NoError(t, yaml.Unmarshal([]byte(doc), &first))

			out, err := yaml.Marshal(&first)
			require.NoError(t, err)

			var second Spec
			require.NoError(t, yaml.Unmarshal(out, &second))
			require.Equal(t, first, second)
		})
	}
}

func TestSpecJSONRoundTrip(t *testing.T) {
	spec := Spec{
		ServiceType: ServiceNFS,
		ServiceID:   "foo",
		Placement:   PlacementSpec{Count: CountPtr(1), Label: "nfs"},
		NFS:         &NFSSpec{Pool: "nfs-ganesha", Namespace: "foo"},
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(&spec)
	require.NoError(t, err)

	var got Spec
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, spec, got)
}

func TestServiceName(t *testing.T) {
	mon := Spec{ServiceType: ServiceMon}
	require.Equal(t, "mon", mon.ServiceName())

	mds := Spec{ServiceType: ServiceMDS, ServiceID: "fs1"}
	require.Equal(t, "mds.fs1", mds.ServiceName())
}

func TestDaemonNameAndServiceName(t *testing.T) {
	d := DaemonDescription{DaemonType: ServiceMDS, DaemonID: "fs1.h1.abcdef", ServiceID: "fs1"}
	require.Equal(t, "mds.fs1.h1.abcdef", d.Name())
	require.Equal(t, "mds.fs1", d.ServiceName())

	mon := DaemonDescription{DaemonType: ServiceMon, DaemonID: "h1"}
	require.Equal(t, "mon.h1", mon.Name())
	require.Equal(t, "mon", mon.ServiceName())
}

func TestParseHostPlacement(t *testing.T) {
	cases := []struct {
		in   string
		want HostPlacementSpec
	}{
		{"h1", HostPlacementSpec{Hostname: "h1"}},
		{"h1:10.0.0.0/24", HostPlacementSpec{Hostname: "h1", Network: "10.0.0.0/24"}},
		{"h1=forced", HostPlacementSpec{Hostname: "h1", Name: "forced"}},
		{"h1:10.0.0.0/24=forced", HostPlacementSpec{Hostname: "h1", Network: "10.0.0.0/24", Name: "forced"}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ParseHostPlacement(tc.in), "entry %q", tc.in)
	}
}

func TestValidName(t *testing.T) {
	require.True(t, ValidName("fs1"))
	require.True(t, ValidName("east-1_zone.a"))
	require.False(t, ValidName(""))
	require.False(t, ValidName("bad/name"))
	require.False(t, ValidName("spa ce"))
}

func TestPlacementIsEmpty(t *testing.T) {
	require.True(t, PlacementSpec{}.IsEmpty())
	require.False(t, PlacementSpec{Count: CountPtr(3)}.IsEmpty())
	require.False(t, PlacementSpec{Count: CountPtr(0)}.IsEmpty(),
		"an explicit zero is a selection, not an omitted count")
	require.False(t, PlacementSpec{Label: "mon"}.IsEmpty())
	require.False(t, PlacementSpec{HostPattern: "*"}.IsEmpty())
}
