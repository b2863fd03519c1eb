package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AdvanceRunsDueTimersInOrder(t *testing.T) {
	clock := NewFakeClock(epoch)
	var order []string

	clock.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	clock.AfterFunc(time.Second, func() { order = append(order, "a") })
	clock.AfterFunc(5*time.Second, func() { order = append(order, "c") })

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, epoch.Add(3*time.Second), clock.Now())
	assert.Equal(t, 1, clock.Pending())
}

func TestFakeClock_CallbackSeesDeadlineTime(t *testing.T) {
	clock := NewFakeClock(epoch)
	var seen time.Time
	clock.AfterFunc(time.Second, func() { seen = clock.Now() })

	clock.Advance(10 * time.Second)
	assert.Equal(t, epoch.Add(time.Second), seen)
}

func TestFakeClock_Stop(t *testing.T) {
	clock := NewFakeClock(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	clock.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeClock_NestedScheduling(t *testing.T) {
	clock := NewFakeClock(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		clock.AfterFunc(time.Second, tick)
	}
	clock.AfterFunc(time.Second, tick)

	clock.Advance(3 * time.Second)
	assert.Equal(t, 3, count)
}

func TestEndpointRecords(t *testing.T) {
	ep := NewEndpoint(t)
	ep.Respond(201, `{"stored":1}`)

	resp, err := ep.Client().Post(ep.URL+"/sync?password=s", "application/json", nil)
	assert.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 201, resp.StatusCode)
	reqs := ep.Requests()
	if assert.Len(t, reqs, 1) {
		assert.Equal(t, "/sync", reqs[0].Path)
		assert.Equal(t, "s", reqs[0].Query.Get("password"))
		assert.Equal(t, "application/json", reqs[0].ContentType)
	}
}
