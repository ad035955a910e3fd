package main

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerAddress(t *testing.T) {
	// Environment-dependent: either no suitable interface exists, or the
	// result must be a parseable global unicast IPv4 address.
	address := serverAddress()
	if address == "" {
		return
	}

	ip := net.ParseIP(address)
	assert.NotNil(t, ip)
	assert.NotNil(t, ip.To4())
	assert.True(t, ip.IsGlobalUnicast())
}
