// Package stream is the Event Stream: it merges each source's cached logs
// into one globally ordered sequence, ready for the Dispatcher.
package stream

import (
	"container/heap"
	"context"
	"fmt"
	"reflect"

	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/pkg/events"
	"golang.org/x/sync/errgroup"
)

// Feed produces one source's events in ascending order (per events.Less)
// and sends them on out until ctx is done or it has nothing more to
// produce. Once Run returns, the merger closes that feed's channel and
// never reads from the feed again.
type Feed interface {
	Name() string
	Run(ctx context.Context, out chan<- events.Event) error
}

// feedBufferSize bounds how far a single feed can run ahead of the merge
// front before its producer blocks on a channel send.
const feedBufferSize = 256

// Merger performs a bounded k-way merge over a fixed set of feeds,
// producing one globally ordered stream on Run's returned channel.
type Merger struct {
	feeds []Feed
	log   *logger.Logger
}

func New(feeds []Feed, log *logger.Logger) *Merger {
	return &Merger{feeds: feeds, log: log.WithComponent("event-stream")}
}

// Run starts every feed's producer goroutine and the merge loop. The
// returned channel carries globally ordered events until ctx is canceled;
// wait must be called afterward to collect the aggregate error.
func (m *Merger) Run(ctx context.Context) (<-chan events.Event, func() error) {
	g, gctx := errgroup.WithContext(ctx)

	channels := make([]chan events.Event, len(m.feeds))
	for i, feed := range m.feeds {
		ch := make(chan events.Event, feedBufferSize)
		channels[i] = ch
		feed := feed
		g.Go(func() error {
			defer close(ch)
			if err := feed.Run(gctx, ch); err != nil {
				return fmt.Errorf("event stream: feed %q: %w", feed.Name(), err)
			}
			return nil
		})
	}

	out := make(chan events.Event, feedBufferSize)
	g.Go(func() error {
		defer close(out)
		return m.merge(gctx, channels, out)
	})

	return out, g.Wait
}

// mergeItem is one heap entry: the next buffered event from a feed, plus
// which feed it came from so the merge loop knows where to pull the next
// one from.
type mergeItem struct {
	event     events.Event
	feedIndex int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return events.Less(h[i].event, h[j].event) }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// merge drains channels in global (block.timestamp, chainId, block.number,
// transaction.index, log.index) order. It only emits the heap's current
// minimum once every still-open feed has contributed its next candidate —
// emitting early, before a slower feed's head is known, could release an
// event out of order if that feed's still-unseen head sorts earlier. The
// number of feeds is only known at Run time, so waiting on "whichever
// still-missing feed produces next" uses reflect.Select, the standard
// approach for a select over a slice of channels.
func (m *Merger) merge(ctx context.Context, channels []chan events.Event, out chan<- events.Event) error {
	h := &mergeHeap{}
	heap.Init(h)

	open := make([]bool, len(channels))
	haveHead := make([]bool, len(channels))
	for i := range channels {
		open[i] = true
	}

	openCount := len(channels)
	for openCount > 0 || h.Len() > 0 {
		missing := make([]int, 0, openCount)
		for i := range channels {
			if open[i] && !haveHead[i] {
				missing = append(missing, i)
			}
		}

		for len(missing) > 0 {
			idx, e, ok, err := m.selectNext(ctx, channels, missing)
			if err != nil {
				return err
			}
			if !ok {
				open[idx] = false
				openCount--
			} else {
				heap.Push(h, mergeItem{event: e, feedIndex: idx})
				haveHead[idx] = true
			}
			missing = removeIndex(missing, idx)
		}

		if h.Len() == 0 {
			break
		}
		item := heap.Pop(h).(mergeItem)
		haveHead[item.feedIndex] = false
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- item.event:
		}
	}
	return nil
}

// selectNext blocks until one of the channels named by candidateIdx
// (indices into channels) produces a value or closes.
func (m *Merger) selectNext(ctx context.Context, channels []chan events.Event, candidateIdx []int) (idx int, e events.Event, ok bool, err error) {
	cases := make([]reflect.SelectCase, 0, len(candidateIdx)+1)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	for _, i := range candidateIdx {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(channels[i])})
	}

	chosen, value, recvOK := reflect.Select(cases)
	if chosen == 0 {
		return 0, events.Event{}, false, ctx.Err()
	}
	selectedIdx := candidateIdx[chosen-1]
	if !recvOK {
		return selectedIdx, events.Event{}, false, nil
	}
	return selectedIdx, value.Interface().(events.Event), true, nil
}

func removeIndex(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
