package redisstore

import "testing"

func TestKeys(t *testing.T) {
	t.Parallel()
	rs := &redisStore{prefix: "codes"}
	testCases := []int{0, 7, 12345}
	for _, id := range testCases {
		key := rs.keyFor(id)
		got, err := rs.idFor(key)
		if err != nil {
			t.Errorf("unexpected error parsing key %q: %v", key, err)
			continue
		}
		if got != id {
			t.Errorf("key %q gave id %d, expected %d", key, got, id)
		}
	}
	if _, err := rs.idFor("codes:meta"); err == nil {
		t.Errorf("expected an error for a key that holds no id")
	}
}
