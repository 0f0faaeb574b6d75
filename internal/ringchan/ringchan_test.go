package ringchan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendKeepsNewest(t *testing.T) {
	rc := New[int](3)
	for i := 0; i < 10; i++ {
		rc.Send(i)
	}
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}

	assert.Equal(t, []int{7, 8, 9}, got, "MUST keep the three newest values")
	m := rc.GetMetrics()
	assert.Equal(t, int64(10), m.Written)
	assert.Equal(t, int64(7), m.Overwritten)
}

func TestSendReportsDrop(t *testing.T) {
	rc := New[string](1)
	assert.False(t, rc.Send("a"))
	assert.True(t, rc.Send("b"))
	assert.Equal(t, 1, rc.Len())
	assert.Equal(t, 1, rc.Cap())
}

func TestSendAfterCloseIsRejected(t *testing.T) {
	rc := New[int](2)
	rc.Close()
	rc.Close()

	assert.NotPanics(t, func() { rc.Send(1) })
	assert.Equal(t, int64(1), rc.GetMetrics().Rejected)
}

func TestConcurrentSendAndClose(t *testing.T) {
	rc := New[int](4)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				rc.Send(i)
			}
		}()
	}
	go func() {
		for range rc.C() {
		}
	}()
	wg.Wait()
	rc.Close()

	m := rc.GetMetrics()
	assert.Equal(t, int64(4000), m.Written+m.Rejected)
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
