package sysinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNslookupAddress(t *testing.T) {
	out := "Server:  resolver1.opendns.com\r\n" +
		"Address:  208.67.222.222\r\n" +
		"\r\n" +
		"Non-authoritative answer:\r\n" +
		"Name:    myip.opendns.com\r\n" +
		"Address:  203.0.113.42\r\n"

	assert.Equal(t, "203.0.113.42", parseNslookupAddress(out))
}

func TestParseNslookupAddressSkipsResolverOnly(t *testing.T) {
	out := "Server:  resolver1.opendns.com\nAddress:  208.67.222.222\n"
	assert.Equal(t, Unknown, parseNslookupAddress(out))
}

func TestParseNslookupAddressIgnoresIPv6Answer(t *testing.T) {
	out := "Name:  myip.opendns.com\nAddress:  2620:119:35::35\n"
	assert.Equal(t, Unknown, parseNslookupAddress(out))
}

func TestParseListBlocks(t *testing.T) {
	out := "\r\n" +
		"DeviceID=PCI\\VEN_8086&DEV_9A49\r\n" +
		"Name=Intel(R) Iris(R) Xe Graphics\r\n" +
		"\r\n" +
		"\r\n" +
		"DeviceID=PCI\\VEN_8086&DEV_A0F0\r\n" +
		"Name=Intel(R) Wi-Fi 6 AX201 160MHz\r\n" +
		"\r\n"

	blocks := parseListBlocks(out)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Intel(R) Iris(R) Xe Graphics", blocks[0]["Name"])
	assert.Equal(t, "PCI\\VEN_8086&DEV_A0F0", blocks[1]["DeviceID"])
}

func TestParseListBlocksIgnoresMalformedLines(t *testing.T) {
	blocks := parseListBlocks("garbage line\nSerialNumber=WD-1234\n")
	require.Len(t, blocks, 1)
	assert.Equal(t, "WD-1234", blocks[0]["SerialNumber"])
}

func TestListValuesSkipsEmpties(t *testing.T) {
	blocks := []map[string]string{
		{"SerialNumber": "A1"},
		{"SerialNumber": ""},
		{"SerialNumber": "B2"},
	}
	assert.Equal(t, []string{"A1", "B2"}, listValues(blocks, "SerialNumber"))
}

func TestCollectorDefaults(t *testing.T) {
	c := NewCollector()
	assert.True(t, c.LookupPublicIP)
	assert.Positive(t, c.CommandTimeout)
}

func TestPublicIPDisabled(t *testing.T) {
	c := &Collector{LookupPublicIP: false}
	assert.Equal(t, Unknown, c.publicIP())
}
