package database

import (
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached accepts a comma separated server list.
func NewMemcached(servers string) *memcache.Client {
	mc := memcache.New(strings.Split(servers, ",")...)
	mc.Timeout = 200 * time.Millisecond
	return mc
}
