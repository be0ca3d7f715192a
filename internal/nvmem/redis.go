// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package nvmem

import (
	"github.com/garyburd/redigo/redis"
)

// Redis reads cells from fields of a redis hash.
type Redis struct {
	Pool *redis.Pool
	Hash string
}

func (s *Redis) ReadCell(name string) ([]byte, error) {
	conn := s.Pool.Get()
	defer conn.Close()
	b, err := redis.Bytes(conn.Do("HGET", s.Hash, name))
	if err == redis.ErrNil {
		return nil, ErrNotFound
	}
	return b, err
}
