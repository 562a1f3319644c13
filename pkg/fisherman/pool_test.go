package fisherman

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moonsong-labs/fisherman/pkg/types"
)

func fakeGroups(n int) []group {
	out := make([]group, n)
	for i := range out {
		out[i] = group{Target: target{Kind: types.ProviderKindBSP}}
	}
	return out
}

func TestRunGroupsRunsEveryGroupExactlyOnce(t *testing.T) {
	groups := fakeGroups(5)
	var count int32
	runGroups(groups, 0, func(group) { atomic.AddInt32(&count, 1) })
	assert.EqualValues(t, 5, count)
}

func TestRunGroupsUnboundedRunsConcurrently(t *testing.T) {
	groups := fakeGroups(4)
	var wg sync.WaitGroup
	wg.Add(len(groups))
	var inflight, maxInflight int32

	runGroups(groups, 0, func(group) {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			max := atomic.LoadInt32(&maxInflight)
			if cur <= max || atomic.CompareAndSwapInt32(&maxInflight, max, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		wg.Done()
	})
	wg.Wait()

	assert.Greater(t, maxInflight, int32(1), "unbounded pool should run groups concurrently, not serially")
}

func TestRunGroupsRespectsConcurrencyLimit(t *testing.T) {
	groups := fakeGroups(8)
	limit := 2
	var inflight, maxInflight int32

	runGroups(groups, limit, func(group) {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			max := atomic.LoadInt32(&maxInflight)
			if cur <= max || atomic.CompareAndSwapInt32(&maxInflight, max, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
	})

	assert.LessOrEqual(t, maxInflight, int32(limit), "observed concurrency must never exceed the configured limit")
}

func TestRunGroupsNoGroupsIsNoop(t *testing.T) {
	called := false
	runGroups(nil, 2, func(group) { called = true })
	assert.False(t, called)
}
